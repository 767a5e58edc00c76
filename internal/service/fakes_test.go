package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/authstate"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"
	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
	"github.com/boddenberg/invoicing-bfa-go/internal/service"
	"github.com/boddenberg/invoicing-bfa-go/internal/syncer"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockLoader struct {
	mu       sync.Mutex
	calls    int
	profile  *mapping.ProfileRecord
	clients  []mapping.ClientRecord
	invoices []mapping.InvoiceRecord
	expenses []mapping.ExpenseRecord
	failOn   string
}

func (m *mockLoader) fail(table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failOn == table {
		return errors.New("remote unavailable")
	}
	return nil
}

func (m *mockLoader) FetchProfile(_ context.Context, _ string) (*mapping.ProfileRecord, error) {
	return m.profile, m.fail("profiles")
}

func (m *mockLoader) FetchClients(_ context.Context, _ string) ([]mapping.ClientRecord, error) {
	return m.clients, m.fail("clients")
}

func (m *mockLoader) FetchInvoices(_ context.Context, _ string) ([]mapping.InvoiceRecord, error) {
	return m.invoices, m.fail("invoices")
}

func (m *mockLoader) FetchQuotations(_ context.Context, _ string) ([]mapping.QuotationRecord, error) {
	return nil, m.fail("quotations")
}

func (m *mockLoader) FetchExpenses(_ context.Context, _ string) ([]mapping.ExpenseRecord, error) {
	return m.expenses, m.fail("expenses")
}

func (m *mockLoader) FetchTimeEntries(_ context.Context, _ string) ([]mapping.TimeEntryRecord, error) {
	return nil, m.fail("time_entries")
}

func (m *mockLoader) FetchBankAccounts(_ context.Context, _ string) ([]mapping.BankAccountRecord, error) {
	return nil, m.fail("bank_accounts")
}

func (m *mockLoader) loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls / 7
}

// recordingOutbox keeps every enqueued batch instead of writing it.
type recordingOutbox struct {
	mu      sync.Mutex
	batches []syncer.Batch
}

func (o *recordingOutbox) Enqueue(_ context.Context, b syncer.Batch) {
	if b.Empty() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, b)
}

func (o *recordingOutbox) Flush(context.Context) error { return nil }

func (o *recordingOutbox) all() []syncer.Batch {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]syncer.Batch(nil), o.batches...)
}

// blockingWriter never completes a write until release is closed.
type blockingWriter struct {
	release chan struct{}
	fail    bool
}

func (w *blockingWriter) Execute(ctx context.Context, _ port.Mutation) error {
	select {
	case <-w.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	if w.fail {
		return errors.New("remote rejected write")
	}
	return nil
}

type mockAuth struct {
	state   authstate.Holder
	session *domain.Session
	err     error
	delay   time.Duration
}

func (m *mockAuth) GetSession(_ context.Context) (*domain.Session, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.session, m.err
}

func (m *mockAuth) SignUp(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	return m.SignIn(ctx, creds)
}

func (m *mockAuth) SignIn(_ context.Context, creds domain.Credentials) (*domain.Session, error) {
	s := &domain.Session{AccessToken: "tok", User: domain.User{ID: "user-2", Email: creds.Email}}
	m.state.Set(port.AuthSignedIn, s)
	return s, nil
}

func (m *mockAuth) SignOut(_ context.Context) error {
	m.state.Set(port.AuthSignedOut, nil)
	return nil
}

func (m *mockAuth) Subscribe(fn func(port.AuthEvent)) func() { return m.state.Subscribe(fn) }

func (m *mockAuth) UserFromToken(_ context.Context, token string) (*domain.User, error) {
	if token != "tok" {
		return nil, &domain.ErrUnauthorized{}
	}
	return &domain.User{ID: "user-2"}, nil
}

// --- Helpers ---

func newTestStore(loader port.Loader) (*service.Store, *recordingOutbox) {
	outbox := &recordingOutbox{}
	return service.NewStore(loader, outbox, observability.NewMetrics(), zap.NewNop()), outbox
}
