package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/handler"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/blob"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/cache"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/sqlite"
	"github.com/boddenberg/invoicing-bfa-go/internal/service"
	"github.com/boddenberg/invoicing-bfa-go/internal/state"
	"github.com/boddenberg/invoicing-bfa-go/internal/syncer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Test server wired against an in-memory SQLite backend ---

type testApp struct {
	router  http.Handler
	store   *service.Store
	backend *sqlite.Store
	metrics *observability.Metrics
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	backend, err := sqlite.NewMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	blobDir := t.TempDir()
	blobs, err := blob.NewDir(blobDir, "http://localhost/files", logger)
	require.NoError(t, err)

	outbox := syncer.NewOutbox(backend, syncer.Once{}, 4, 5*time.Second, metrics, logger)
	store := service.NewStore(backend, outbox, metrics, logger)
	auth := service.NewLocalAuth(backend, "test-secret", time.Hour, logger)
	session := service.NewSession(auth, store, time.Second, logger)
	session.Start(context.Background())
	t.Cleanup(session.Close)

	tokens := cache.New[domain.User](time.Minute)
	t.Cleanup(tokens.Close)

	router := handler.NewRouter(handler.Services{
		Store:      store,
		Session:    session,
		Timer:      service.NewTimer(store),
		Documents:  service.NewDocuments(store, blobs, logger),
		TokenCache: tokens,
		BlobDir:    blobDir,
	}, metrics, logger)

	return &testApp{router: router, store: store, backend: backend, metrics: metrics}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) signUp(t *testing.T) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/session/signup", "", domain.Credentials{
		Email: "owner@example.com", Password: "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Session domain.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Session.AccessToken)
	return resp.Session.AccessToken
}

// --- Operational endpoints ---

func TestHealthz(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/healthz", "", nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/readyz", "", nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/metrics", "", nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestPing(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/ping", "", nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// --- Auth ---

func TestProtectedRoutesNeedToken(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/v1/state", "/v1/timer", "/v1/reports/summary", "/v1/sync/status"} {
		rec := app.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := app.do(t, http.MethodGet, "/v1/state", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_SignUpAndStatus(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/v1/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"authenticated":false`)

	app.signUp(t)

	rec = app.do(t, http.MethodGet, "/v1/session", "", nil)
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)
	assert.Contains(t, rec.Body.String(), `"phase":"ready"`)
}

func TestSession_InvalidCredentials(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/v1/session/signin", "", domain.Credentials{Email: "a@b.c", Password: "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/v1/session/signin", "", domain.Credentials{Email: "nobody@example.com", Password: "123456"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_SignOutRevokesAccess(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t)

	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/v1/state", token, nil).Code)

	rec := app.do(t, http.MethodPost, "/v1/session/signout", "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// the token is still cached but no longer owns the session
	rec = app.do(t, http.MethodGet, "/v1/state", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, app.store.State().User)
}

func TestTokenCacheHits(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t)

	app.do(t, http.MethodGet, "/v1/state", token, nil)
	app.do(t, http.MethodGet, "/v1/state", token, nil)

	stats := app.metrics.SyncSnapshot()
	assert.Equal(t, int64(1), stats.TokenCacheMisses)
	assert.Equal(t, int64(1), stats.TokenCacheHits)
}

// --- State & dispatch ---

func TestDispatch_AppliesAndSyncs(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t)

	rec := app.do(t, http.MethodPost, "/v1/dispatch", token, map[string]any{
		"type":    "ADD_CLIENT",
		"payload": map[string]any{"id": "c-1", "name": "Acme", "email": "billing@acme.test"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var snap state.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Clients, 1)
	assert.Equal(t, "Acme", snap.Clients[0].Name)

	require.NoError(t, app.store.Flush(context.Background()))
	rows, err := app.backend.FetchClients(context.Background(), snap.User.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "billing@acme.test", rows[0].Email)
}

func TestDispatch_Rejections(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t)

	rec := app.do(t, http.MethodPost, "/v1/dispatch", token, map[string]any{"payload": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/v1/dispatch", token, map[string]any{
		"type": "SET_USER", "payload": map[string]string{"id": "intruder"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, "/v1/dispatch", token, map[string]any{
		"type": "UPDATE_CLIENT", "payload": map[string]string{"name": "no id"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Documents ---

func TestInvoices_CreateDuplicateAndPay(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t)

	rec := app.do(t, http.MethodPost, "/v1/invoices", token, map[string]any{
		"items":   []map[string]any{{"description": "Design", "quantity": 2, "rate": 50}},
		"taxRate": 0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var inv domain.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, "INV-1001", inv.InvoiceNumber)
	assert.Equal(t, domain.InvoiceDraft, inv.Status)
	assert.InDelta(t, 100.0, inv.Subtotal, 1e-9)

	rec = app.do(t, http.MethodPost, "/v1/invoices/"+inv.ID+"/duplicate", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var dup domain.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dup))
	assert.Equal(t, "INV-1002", dup.InvoiceNumber)
	assert.NotEqual(t, inv.ID, dup.ID)

	rec = app.do(t, http.MethodPut, "/v1/invoices/"+inv.ID+"/status", token, map[string]string{"status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code)
	var paid domain.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	require.NotNil(t, paid.PaidDate)

	rec = app.do(t, http.MethodPut, "/v1/invoices/"+inv.ID+"/status", token, map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/v1/invoices/missing/duplicate", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the remote copy carries the same items
	require.NoError(t, app.store.Flush(context.Background()))
	rows, err := app.backend.FetchInvoices(context.Background(), app.store.State().User.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Len(t, row.Items, 1)
	}
}

func TestQuotations_CreateAndConvert(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t)

	rec := app.do(t, http.MethodPost, "/v1/quotations", token, map[string]any{
		"items": []map[string]any{{"description": "Audit", "quantity": 1, "rate": 300}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q domain.Quotation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.NotEmpty(t, q.ValidUntil)

	rec = app.do(t, http.MethodPost, "/v1/quotations/"+q.ID+"/convert", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/v1/quotations/"+q.ID+"/convert", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	snap := app.store.State()
	require.Len(t, snap.Invoices, 1)
	assert.InDelta(t, 300.0, snap.Invoices[0].Subtotal, 1e-9)
}

// --- Timer ---

func TestTimer_StartStop(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t)

	rec := app.do(t, http.MethodPost, "/v1/timer/start", token, map[string]any{"project": "Site"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/v1/timer/start", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodGet, "/v1/timer", token, nil)
	assert.Contains(t, rec.Body.String(), `"running":true`)

	// under a second has elapsed, so nothing is recorded
	rec = app.do(t, http.MethodPost, "/v1/timer/stop", token, nil)
	assert.Contains(t, []int{http.StatusNoContent, http.StatusCreated}, rec.Code)

	rec = app.do(t, http.MethodPost, "/v1/timer/resume", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Settings ---

func TestLogo_UploadServeAndRemove(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("logo", "logo.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/v1/settings/logo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	url := resp["businessLogo"]
	require.True(t, strings.HasPrefix(url, "http://localhost/files/"), url)

	require.NotNil(t, app.store.State().Settings.BusinessLogo)
	assert.Equal(t, url, *app.store.State().Settings.BusinessLogo)

	rec = app.do(t, http.MethodGet, strings.TrimPrefix(url, "http://localhost"), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, png, rec.Body.Bytes())

	rec = app.do(t, http.MethodDelete, "/v1/settings/logo", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, app.store.State().Settings.BusinessLogo)
}

// --- Reports ---

func TestReports_SummaryAndExport(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t)

	rec := app.do(t, http.MethodPost, "/v1/invoices", token, map[string]any{
		"status": "paid",
		"items":  []map[string]any{{"description": "Work", "quantity": 1, "rate": 80}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/v1/reports/summary?months=3", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum struct {
		TotalRevenue   float64           `json:"totalRevenue"`
		MonthlyRevenue []json.RawMessage `json:"monthlyRevenue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Greater(t, sum.TotalRevenue, 0.0)
	assert.Len(t, sum.MonthlyRevenue, 3)

	rec = app.do(t, http.MethodGet, "/v1/reports/export.csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "financial-report-")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Type,Date,Description,Amount,Status\n"))
}
