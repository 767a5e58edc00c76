package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Writer (implements port.Writer)
// ============================================================

// Execute applies one mutation through PostgREST. Each call is a single
// attempt; retrying is the caller's policy. Updates and deletes on owned
// tables also match user_id; line items rely on row level security under
// the account's token.
func (c *Client) Execute(ctx context.Context, m port.Mutation) error {
	ctx, span := tracer.Start(ctx, "Supabase.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("table", m.Table),
		attribute.String("op", string(m.Op)),
	)

	t, ok := mapping.Lookup(m.Table)
	if !ok {
		return &domain.ErrValidation{Field: "table", Message: "unknown table " + m.Table}
	}
	if err := m.CheckOwner(t); err != nil {
		return err
	}
	if c.userTokens != nil {
		token := c.userTokens(m.Owner)
		if token == "" {
			return &domain.ErrUnauthorized{Message: "no session for the writing account"}
		}
		ctx = withBearer(ctx, token)
	}

	err := resilience.Execute(c.cb, func() error {
		switch m.Op {
		case port.OpInsert:
			if len(m.Rows) == 0 {
				return nil
			}
			return classify(c.insert(ctx, t, m.Rows))
		case port.OpUpdate:
			if len(m.Rows) != 1 {
				return resilience.Permanent(&domain.ErrValidation{Field: "rows", Message: "update needs exactly one row"})
			}
			path, err := filterPath(t, m.Filter, m.Owner)
			if err != nil {
				return err
			}
			return classify(c.doPatch(ctx, path, m.Rows[0]))
		case port.OpDelete:
			path, err := filterPath(t, m.Filter, m.Owner)
			if err != nil {
				return err
			}
			return classify(c.doDelete(ctx, path))
		default:
			return resilience.Permanent(&domain.ErrValidation{Field: "op", Message: "unknown op " + string(m.Op)})
		}
	})

	if err != nil {
		span.RecordError(err)
		var dup *domain.ErrDuplicate
		var verr *domain.ErrValidation
		var unauthorized *domain.ErrUnauthorized
		if errors.As(err, &dup) || errors.As(err, &verr) || errors.As(err, &unauthorized) {
			return err
		}
		return &domain.ErrExternalService{Service: "supabase/" + m.Table, Err: err}
	}
	return nil
}

// insert posts one object or a bulk array. Bulk rows may carry different
// keys; the union goes in ?columns= so absent keys take column defaults.
func (c *Client) insert(ctx context.Context, t mapping.Table, rows []mapping.Row) error {
	if len(rows) == 1 {
		return c.doPost(ctx, t.Name, rows[0])
	}

	var cols []string
	for _, col := range t.Columns {
		for _, r := range rows {
			if _, ok := r[col.Transport]; ok {
				cols = append(cols, col.Transport)
				break
			}
		}
	}
	return c.doPost(ctx, fmt.Sprintf("%s?columns=%s", t.Name, strings.Join(cols, ",")), rows)
}

func filterPath(t mapping.Table, f port.Filter, owner string) (string, error) {
	if _, ok := t.ByTransport(f.Column); !ok || f.Value == "" {
		return "", resilience.Permanent(&domain.ErrValidation{Field: "filter", Message: "writes must filter on a known column"})
	}
	path := fmt.Sprintf("%s?%s=eq.%s", t.Name, f.Column, url.QueryEscape(f.Value))
	if t.Owner != "" {
		path += fmt.Sprintf("&%s=eq.%s", t.Owner, url.QueryEscape(owner))
	}
	return path, nil
}

// classify marks client errors as permanent so they neither retry nor trip
// the breaker. Unique violations become *domain.ErrDuplicate.
func classify(err error) error {
	var se *statusError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.status == http.StatusConflict:
		return resilience.Permanent(&domain.ErrDuplicate{Key: se.body})
	case se.status >= 400 && se.status < 500 && se.status != http.StatusTooManyRequests && se.status != http.StatusRequestTimeout:
		return resilience.Permanent(err)
	}
	return err
}
