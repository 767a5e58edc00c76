package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"

	"go.uber.org/zap"
)

// --- Mocks ---

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func (m *memAccounts) CreateAccount(_ context.Context, a domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accounts == nil {
		m.accounts = map[string]domain.Account{}
	}
	if _, ok := m.accounts[a.Email]; ok {
		return &domain.ErrConflict{Message: "email already registered"}
	}
	m.accounts[a.Email] = a
	return nil
}

func (m *memAccounts) FindAccount(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func newTestAuth() *LocalAuth {
	return NewLocalAuth(&memAccounts{}, "test-secret", time.Hour, zap.NewNop())
}

// --- Tests ---

func TestLocalAuth_SignUpSignsIn(t *testing.T) {
	a := newTestAuth()
	var events []port.AuthEventType
	unsubscribe := a.Subscribe(func(ev port.AuthEvent) { events = append(events, ev.Type) })
	defer unsubscribe()

	s, err := a.SignUp(context.Background(), domain.Credentials{Email: " Owner@Example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.User.Email != "owner@example.com" {
		t.Errorf("expected normalized email, got %s", s.User.Email)
	}
	if s.AccessToken == "" || s.ExpiresAt == 0 {
		t.Error("expected a token with expiry")
	}
	if len(events) != 1 || events[0] != port.AuthSignedIn {
		t.Errorf("expected one SIGNED_IN event, got %v", events)
	}

	current, _ := a.GetSession(context.Background())
	if current == nil || current.User.ID != s.User.ID {
		t.Error("expected session to be current")
	}
}

func TestLocalAuth_DuplicateEmail(t *testing.T) {
	a := newTestAuth()
	ctx := context.Background()

	if _, err := a.SignUp(ctx, domain.Credentials{Email: "a@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := a.SignUp(ctx, domain.Credentials{Email: "A@example.com", Password: "secret2"})
	if _, ok := err.(*domain.ErrConflict); !ok {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestLocalAuth_SignInChecksPassword(t *testing.T) {
	a := newTestAuth()
	ctx := context.Background()
	if _, err := a.SignUp(ctx, domain.Credentials{Email: "a@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_ = a.SignOut(ctx)

	if _, err := a.SignIn(ctx, domain.Credentials{Email: "a@example.com", Password: "wrong!!"}); err == nil {
		t.Fatal("expected wrong password to fail")
	}
	if _, err := a.SignIn(ctx, domain.Credentials{Email: "nobody@example.com", Password: "secret1"}); err == nil {
		t.Fatal("expected unknown email to fail")
	}

	s, err := a.SignIn(ctx, domain.Credentials{Email: "a@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("expected sign in, got %v", err)
	}

	u, err := a.UserFromToken(ctx, s.AccessToken)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if u.ID != s.User.ID || u.Email != "a@example.com" {
		t.Errorf("unexpected user %+v", u)
	}
}

func TestLocalAuth_SignOutClearsSession(t *testing.T) {
	a := newTestAuth()
	ctx := context.Background()
	_, _ = a.SignUp(ctx, domain.Credentials{Email: "a@example.com", Password: "secret1"})

	var last port.AuthEvent
	a.Subscribe(func(ev port.AuthEvent) { last = ev })
	if err := a.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	if last.Type != port.AuthSignedOut || last.Session != nil {
		t.Errorf("expected SIGNED_OUT with nil session, got %+v", last)
	}
	if s, _ := a.GetSession(ctx); s != nil {
		t.Error("expected no session")
	}
}

func TestLocalAuth_ExpiredTokensRejected(t *testing.T) {
	a := newTestAuth()
	ctx := context.Background()
	clock := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return clock }

	s, err := a.SignUp(ctx, domain.Credentials{Email: "a@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	clock = clock.Add(2 * time.Hour)
	if _, err := a.UserFromToken(ctx, s.AccessToken); err == nil {
		t.Error("expected expired token to be rejected")
	}
	if current, _ := a.GetSession(ctx); current != nil {
		t.Error("expected expired session to be dropped")
	}
}

func TestLocalAuth_RejectsForeignTokens(t *testing.T) {
	a := newTestAuth()
	other := NewLocalAuth(&memAccounts{}, "other-secret", time.Hour, zap.NewNop())
	s, _ := other.SignUp(context.Background(), domain.Credentials{Email: "a@example.com", Password: "secret1"})

	if _, err := a.UserFromToken(context.Background(), s.AccessToken); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}
	if _, err := a.UserFromToken(context.Background(), "not-a-jwt"); err == nil {
		t.Error("expected garbage to be rejected")
	}
}
