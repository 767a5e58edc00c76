package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
	"github.com/boddenberg/invoicing-bfa-go/internal/state"

	"go.uber.org/zap"
)

// Phase is a step of the session lifecycle.
type Phase string

const (
	PhaseLoading        Phase = "loading"
	PhaseAuthenticating Phase = "authenticating"
	PhaseAuthenticated  Phase = "authenticated"
	PhaseLoadingData    Phase = "loading_data"
	PhaseAnonymous      Phase = "anonymous"
	PhaseReady          Phase = "ready"
)

// DefaultSessionTimeout bounds session resolution on start.
const DefaultSessionTimeout = 5 * time.Second

// SessionStatus is reported by GET /v1/session.
type SessionStatus struct {
	Phase         Phase        `json:"phase"`
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user"`
}

// Session drives authentication and the initial data load:
//
//	loading -> authenticating -> authenticated -> loading_data -> ready
//	                          -> anonymous -> ready
//
// Every auth change (sign in, sign out, token refresh) re-enters
// authenticating and reloads data when a user is present.
type Session struct {
	auth    port.AuthProvider
	store   *Store
	timeout time.Duration
	logger  *zap.Logger

	mu          sync.Mutex
	phase       Phase
	closed      bool
	unsubscribe func()
	base        context.Context
}

// NewSession wires auth to store. timeout <= 0 uses DefaultSessionTimeout.
func NewSession(auth port.AuthProvider, store *Store, timeout time.Duration, logger *zap.Logger) *Session {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &Session{
		auth:    auth,
		store:   store,
		timeout: timeout,
		logger:  logger,
		phase:   PhaseLoading,
		base:    context.Background(),
	}
}

// Start resolves the current session and loads its data. It never fails:
// a timeout or provider error leaves the app anonymous and ready.
func (s *Session) Start(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "Session.Start")
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.base = context.WithoutCancel(ctx)
	if s.unsubscribe == nil {
		s.unsubscribe = s.auth.Subscribe(s.onAuthChange)
	}
	s.mu.Unlock()

	s.setPhase(PhaseAuthenticating)

	sess, err := s.resolve(ctx)
	if s.isClosed() {
		return
	}
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("session: resolution failed, continuing signed out", zap.Error(err))
		s.becomeAnonymous(ctx)
		return
	}
	if sess == nil {
		s.becomeAnonymous(ctx)
		return
	}
	user := sess.User
	s.becomeUser(ctx, &user)
}

type resolved struct {
	session *domain.Session
	err     error
}

// resolve races GetSession against the timeout, so a provider that ignores
// its context still cannot hold the start up.
func (s *Session) resolve(ctx context.Context) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ch := make(chan resolved, 1)
	go func() {
		sess, err := s.auth.GetSession(ctx)
		ch <- resolved{session: sess, err: err}
	}()

	select {
	case r := <-ch:
		return r.session, r.err
	case <-ctx.Done():
		return nil, &domain.ErrTimeout{Operation: "session resolution"}
	}
}

func (s *Session) onAuthChange(ev port.AuthEvent) {
	if s.isClosed() {
		return
	}
	s.logger.Debug("session: auth state changed", zap.String("event", string(ev.Type)))

	ctx := s.baseContext()
	s.setPhase(PhaseAuthenticating)
	if ev.Session == nil {
		s.becomeAnonymous(ctx)
		return
	}
	user := ev.Session.User
	s.becomeUser(ctx, &user)
}

func (s *Session) becomeUser(ctx context.Context, u *domain.User) {
	s.setPhase(PhaseAuthenticated)
	s.store.Dispatch(ctx, state.NewSetUser(u))

	s.setPhase(PhaseLoadingData)
	// Failures are logged by the store; the app still becomes usable.
	_ = s.store.LoadUserData(ctx, u.ID)
	if s.isClosed() {
		return
	}
	s.store.Dispatch(ctx, state.NewSetLoading(false))
	s.setPhase(PhaseReady)
}

func (s *Session) becomeAnonymous(ctx context.Context) {
	s.setPhase(PhaseAnonymous)
	s.store.Dispatch(ctx, state.NewSetUser(nil))
	s.store.Reset(ctx)
	s.store.Dispatch(ctx, state.NewSetLoading(false))
	s.setPhase(PhaseReady)
}

// SignUp registers an account. The provider's auth event drives the reload.
func (s *Session) SignUp(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if err := validateCredentials(creds); err != nil {
		return nil, err
	}
	return s.auth.SignUp(ctx, creds)
}

// SignIn authenticates with email and password.
func (s *Session) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if err := validateCredentials(creds); err != nil {
		return nil, err
	}
	return s.auth.SignIn(ctx, creds)
}

// SignOut ends the session; the snapshot resets to defaults.
func (s *Session) SignOut(ctx context.Context) error {
	return s.auth.SignOut(ctx)
}

// UserFromToken resolves a bearer token through the provider.
func (s *Session) UserFromToken(ctx context.Context, token string) (*domain.User, error) {
	return s.auth.UserFromToken(ctx, token)
}

// Status reports the lifecycle phase and signed-in user.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()

	u := s.store.State().User
	return SessionStatus{Phase: phase, Authenticated: u != nil, User: u}
}

// Close unsubscribes from auth changes. A start still in flight will not
// apply its result afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.phase = p
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

func validateCredentials(creds domain.Credentials) error {
	if creds.Email == "" {
		return &domain.ErrValidation{Field: "email", Message: "email is required"}
	}
	if len(creds.Password) < 6 {
		return &domain.ErrValidation{Field: "password", Message: "password must have at least 6 characters"}
	}
	return nil
}
