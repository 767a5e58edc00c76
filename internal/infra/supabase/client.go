// Package supabase provides a client for Supabase (PostgREST + Auth + Storage).
// Used as the hosted backend for account data, sessions and uploaded logos.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger

	// userTokens returns the access token of a signed-in account, or "".
	userTokens func(userID string) string
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// UseUserTokens makes writes run as the account they act for, so row level
// security applies. Without it writes use the service role key.
func (c *Client) UseUserTokens(fn func(userID string) string) {
	c.userTokens = fn
}

type bearerKey struct{}

func withBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func (c *Client) setHeaders(req *http.Request) {
	bearer := c.serviceRoleKey
	if token, ok := req.Context().Value(bearerKey{}).(string); ok && token != "" {
		bearer = token
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
	req.Header.Set("Content-Type", "application/json")
}

// doRequest executes an authenticated request to Supabase PostgREST.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	c.setHeaders(req)
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// fetch reads every row behind path through the circuit breaker with retries.
// An empty response decodes to an empty slice.
func fetch[T any](ctx context.Context, c *Client, resource, path string) ([]T, error) {
	rows := []T{}

	err := resilience.Execute(c.cb, func() error {
		return resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				rows = []T{}
				return nil
			}
			if err := json.Unmarshal(body, &rows); err != nil {
				return resilience.Permanent(fmt.Errorf("failed to decode %s: %w", resource, err))
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/" + resource, Err: err}
	}
	return rows, nil
}

func ownedBy(table, userID, rest string) string {
	path := fmt.Sprintf("%s?user_id=eq.%s", table, url.QueryEscape(userID))
	if rest != "" {
		path += "&" + rest
	}
	return path
}

// ============================================================
// Loader (implements port.Loader)
// ============================================================

// FetchProfile returns the account's profile row, or nil when none exists.
func (c *Client) FetchProfile(ctx context.Context, userID string) (*mapping.ProfileRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := fetch[mapping.ProfileRecord](ctx, c, "profiles",
		fmt.Sprintf("profiles?id=eq.%s&limit=1", url.QueryEscape(userID)))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) FetchClients(ctx context.Context, userID string) ([]mapping.ClientRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchClients")
	defer span.End()

	return fetch[mapping.ClientRecord](ctx, c, "clients",
		ownedBy("clients", userID, "select=*&order=created_at.desc"))
}

func (c *Client) FetchInvoices(ctx context.Context, userID string) ([]mapping.InvoiceRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchInvoices")
	defer span.End()

	return fetch[mapping.InvoiceRecord](ctx, c, "invoices",
		ownedBy("invoices", userID, "select=*,items:invoice_items(*)&order=created_at.desc"))
}

func (c *Client) FetchQuotations(ctx context.Context, userID string) ([]mapping.QuotationRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchQuotations")
	defer span.End()

	return fetch[mapping.QuotationRecord](ctx, c, "quotations",
		ownedBy("quotations", userID, "select=*,items:quotation_items(*)&order=created_at.desc"))
}

func (c *Client) FetchExpenses(ctx context.Context, userID string) ([]mapping.ExpenseRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchExpenses")
	defer span.End()

	return fetch[mapping.ExpenseRecord](ctx, c, "expenses",
		ownedBy("expenses", userID, "select=*&order=date.desc"))
}

func (c *Client) FetchTimeEntries(ctx context.Context, userID string) ([]mapping.TimeEntryRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchTimeEntries")
	defer span.End()

	return fetch[mapping.TimeEntryRecord](ctx, c, "time_entries",
		ownedBy("time_entries", userID, "select=*&order=created_at.desc"))
}

func (c *Client) FetchBankAccounts(ctx context.Context, userID string) ([]mapping.BankAccountRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchBankAccounts")
	defer span.End()

	return fetch[mapping.BankAccountRecord](ctx, c, "bank_accounts",
		ownedBy("bank_accounts", userID, "select=*&order=created_at.desc"))
}
