package sqlgen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("sqlgen")

// QueryFunc runs st and returns its single JSON text result.
type QueryFunc func(ctx context.Context, st Statement) ([]byte, error)

// Loader implements port.Loader for SQL backends on top of SelectJSON.
type Loader struct {
	dialect Dialect
	query   QueryFunc
}

// NewLoader creates a loader issuing queries through q.
func NewLoader(d Dialect, q QueryFunc) *Loader {
	return &Loader{dialect: d, query: q}
}

func load[T any](ctx context.Context, l *Loader, q Query) ([]T, error) {
	ctx, span := tracer.Start(ctx, "SQL.Load")
	defer span.End()
	span.SetAttributes(attribute.String("table", q.Table.Name))

	st, err := SelectJSON(l.dialect, q)
	if err != nil {
		return nil, err
	}
	raw, err := l.query(ctx, st)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load %s: %w", q.Table.Name, err)
	}

	rows := []T{}
	if len(raw) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", q.Table.Name, err)
	}
	return rows, nil
}

func owned(t mapping.Table, userID, orderBy string) Query {
	return Query{Table: t, Where: t.Owner, Value: userID, OrderBy: orderBy, Desc: true}
}

// FetchProfile returns nil, nil when the account has no profile row.
func (l *Loader) FetchProfile(ctx context.Context, userID string) (*mapping.ProfileRecord, error) {
	rows, err := load[mapping.ProfileRecord](ctx, l, Query{Table: mapping.Profiles, Where: "id", Value: userID, Limit: 1})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (l *Loader) FetchClients(ctx context.Context, userID string) ([]mapping.ClientRecord, error) {
	return load[mapping.ClientRecord](ctx, l, owned(mapping.Clients, userID, "created_at"))
}

func (l *Loader) FetchInvoices(ctx context.Context, userID string) ([]mapping.InvoiceRecord, error) {
	q := owned(mapping.Invoices, userID, "created_at")
	q.Embed, q.EmbedAs = &mapping.InvoiceItems, "items"
	return load[mapping.InvoiceRecord](ctx, l, q)
}

func (l *Loader) FetchQuotations(ctx context.Context, userID string) ([]mapping.QuotationRecord, error) {
	q := owned(mapping.Quotations, userID, "created_at")
	q.Embed, q.EmbedAs = &mapping.QuotationItems, "items"
	return load[mapping.QuotationRecord](ctx, l, q)
}

func (l *Loader) FetchExpenses(ctx context.Context, userID string) ([]mapping.ExpenseRecord, error) {
	return load[mapping.ExpenseRecord](ctx, l, owned(mapping.Expenses, userID, "date"))
}

func (l *Loader) FetchTimeEntries(ctx context.Context, userID string) ([]mapping.TimeEntryRecord, error) {
	return load[mapping.TimeEntryRecord](ctx, l, owned(mapping.TimeEntries, userID, "created_at"))
}

func (l *Loader) FetchBankAccounts(ctx context.Context, userID string) ([]mapping.BankAccountRecord, error) {
	return load[mapping.BankAccountRecord](ctx, l, owned(mapping.BankAccounts, userID, "created_at"))
}
