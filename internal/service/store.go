// Package service holds the use cases on top of the account snapshot:
// the optimistic state store, the session lifecycle, the time tracker,
// document helpers and the built-in auth provider.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"
	"github.com/boddenberg/invoicing-bfa-go/internal/mapping"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
	"github.com/boddenberg/invoicing-bfa-go/internal/state"
	"github.com/boddenberg/invoicing-bfa-go/internal/syncer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/store")

// Enqueuer schedules remote batches. *syncer.Outbox implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, b syncer.Batch)
	Flush(ctx context.Context) error
}

// Store is the authoritative in-memory snapshot of the signed-in account.
// Dispatch applies an action locally before returning and mirrors it to the
// remote store in the background, without waiting and without rollback.
type Store struct {
	mu    sync.RWMutex
	state state.State

	loader  port.Loader
	outbox  Enqueuer
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewStore creates a store in the initial (loading, signed-out) state.
func NewStore(loader port.Loader, outbox Enqueuer, metrics *observability.Metrics, logger *zap.Logger) *Store {
	return &Store{
		state:   state.Initial(),
		loader:  loader,
		outbox:  outbox,
		metrics: metrics,
		logger:  logger,
	}
}

// State returns the current snapshot. Snapshots are never mutated after
// they are published.
func (s *Store) State() state.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch reduces a into the snapshot and enqueues its remote writes.
// Writes are only produced when a user was signed in before the action and
// the action took effect locally.
func (s *Store) Dispatch(ctx context.Context, a state.Action) state.State {
	ctx, span := tracer.Start(ctx, "Store.Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("action", string(a.Type)))

	next, _ := s.commit(ctx, func(state.State) ([]state.Action, error) {
		return []state.Action{a}, nil
	})
	return next
}

// Update builds actions from the current snapshot and applies them under
// the store lock, so no other dispatch lands between the read and the
// write. A build error leaves the snapshot untouched.
func (s *Store) Update(ctx context.Context, build func(state.State) ([]state.Action, error)) (state.State, error) {
	ctx, span := tracer.Start(ctx, "Store.Update")
	defer span.End()

	next, err := s.commit(ctx, build)
	if err != nil {
		span.RecordError(err)
	}
	return next, err
}

type applied struct {
	action state.Action
	next   state.State
	userID string
}

func (s *Store) commit(ctx context.Context, build func(state.State) ([]state.Action, error)) (state.State, error) {
	s.mu.Lock()
	cur := s.state
	actions, err := build(cur)
	if err != nil {
		s.mu.Unlock()
		return cur, err
	}

	steps := make([]applied, 0, len(actions))
	for _, a := range actions {
		userID := ""
		if cur.User != nil {
			userID = cur.User.ID
		}
		next, ok := state.Apply(cur, a)
		if !ok {
			s.logger.Debug("store: action not applied", zap.String("action", string(a.Type)))
		} else {
			steps = append(steps, applied{action: a, next: next, userID: userID})
		}
		cur = next
	}
	s.state = cur
	s.mu.Unlock()

	for _, a := range actions {
		s.metrics.IncrDispatch(string(a.Type))
	}
	for _, st := range steps {
		batch, err := syncer.Translate(st.action, st.next, st.userID)
		if err != nil {
			s.logger.Debug("store: action not synced",
				zap.String("action", string(st.action.Type)),
				zap.Error(err),
			)
			continue
		}
		s.outbox.Enqueue(ctx, batch)
	}
	return cur, nil
}

// Reset replaces every collection and the settings with their defaults.
func (s *Store) Reset(ctx context.Context) state.State {
	return s.Dispatch(ctx, state.NewLoadData(state.EmptyData()))
}

// Flush waits for in-flight remote writes.
func (s *Store) Flush(ctx context.Context) error {
	return s.outbox.Flush(ctx)
}

// LoadUserData fetches the profile and every collection of userID
// concurrently and replaces the snapshot with a single LOAD_DATA. Any failed
// fetch fails the whole load and leaves the snapshot untouched.
func (s *Store) LoadUserData(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Store.LoadUserData")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	data, err := s.fetchAll(ctx, userID)
	s.metrics.RecordLoad(time.Since(start), err != nil)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("store: failed to load user data",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}

	s.Dispatch(ctx, state.NewLoadData(data))
	s.logger.Debug("store: user data loaded",
		zap.String("user_id", userID),
		zap.Int("invoices", len(data.Invoices)),
		zap.Int("clients", len(data.Clients)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (s *Store) fetchAll(ctx context.Context, userID string) (state.LoadedData, error) {
	var (
		profile      *mapping.ProfileRecord
		clients      []mapping.ClientRecord
		invoices     []mapping.InvoiceRecord
		quotations   []mapping.QuotationRecord
		expenses     []mapping.ExpenseRecord
		timeEntries  []mapping.TimeEntryRecord
		bankAccounts []mapping.BankAccountRecord
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		profile, err = s.loader.FetchProfile(gCtx, userID)
		return wrapFetch("profile", err)
	})
	g.Go(func() (err error) {
		clients, err = s.loader.FetchClients(gCtx, userID)
		return wrapFetch("clients", err)
	})
	g.Go(func() (err error) {
		invoices, err = s.loader.FetchInvoices(gCtx, userID)
		return wrapFetch("invoices", err)
	})
	g.Go(func() (err error) {
		quotations, err = s.loader.FetchQuotations(gCtx, userID)
		return wrapFetch("quotations", err)
	})
	g.Go(func() (err error) {
		expenses, err = s.loader.FetchExpenses(gCtx, userID)
		return wrapFetch("expenses", err)
	})
	g.Go(func() (err error) {
		timeEntries, err = s.loader.FetchTimeEntries(gCtx, userID)
		return wrapFetch("time entries", err)
	})
	g.Go(func() (err error) {
		bankAccounts, err = s.loader.FetchBankAccounts(gCtx, userID)
		return wrapFetch("bank accounts", err)
	})

	if err := g.Wait(); err != nil {
		return state.LoadedData{}, err
	}

	settings := mapping.MergeSettings(profile)
	return state.LoadedData{
		Clients:      convert(clients, mapping.ClientFromRecord),
		Invoices:     convert(invoices, mapping.InvoiceFromRecord),
		Quotations:   convert(quotations, mapping.QuotationFromRecord),
		Expenses:     convert(expenses, mapping.ExpenseFromRecord),
		TimeEntries:  convert(timeEntries, mapping.TimeEntryFromRecord),
		BankAccounts: convert(bankAccounts, mapping.BankAccountFromRecord),
		Settings:     &settings,
	}, nil
}

func wrapFetch(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s: %w", what, err)
}

// convert maps records to entities. The result is never nil, so LOAD_DATA
// replaces the collection even when the account has no rows.
func convert[R, E any](records []R, fn func(R) E) []E {
	out := make([]E, 0, len(records))
	for _, r := range records {
		out = append(out, fn(r))
	}
	return out
}

// currentUser returns the signed-in user or ErrUnauthorized.
func (s *Store) currentUser() (*domain.User, error) {
	u := s.State().User
	if u == nil {
		return nil, &domain.ErrUnauthorized{Message: "not signed in"}
	}
	return u, nil
}
