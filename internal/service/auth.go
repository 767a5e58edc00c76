package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/authstate"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	bcryptCost       = 12
	defaultAccessTTL = 24 * time.Hour
)

var _ port.AuthProvider = (*LocalAuth)(nil)

// LocalAuth is the built-in auth provider for the self-hosted backends:
// bcrypt password hashes in the account store and HS256 access tokens.
type LocalAuth struct {
	store     port.AccountStore
	jwtSecret []byte
	accessTTL time.Duration
	state     authstate.Holder
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger
}

// NewLocalAuth creates the provider. accessTTL <= 0 uses 24h.
func NewLocalAuth(store port.AccountStore, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *LocalAuth {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	return &LocalAuth{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// ============================================================
// Session
// ============================================================

// GetSession returns the current session. An expired session is dropped;
// there are no refresh tokens, so the user signs in again.
func (a *LocalAuth) GetSession(ctx context.Context) (*domain.Session, error) {
	_, span := authTracer.Start(ctx, "LocalAuth.GetSession")
	defer span.End()

	s := a.state.Current()
	if s != nil && s.ExpiresAt != 0 && a.now().Unix() >= s.ExpiresAt {
		a.logger.Info("session expired", zap.String("user_id", s.User.ID))
		a.state.Set(port.AuthSignedOut, nil)
		return nil, nil
	}
	return s, nil
}

// Subscribe registers fn for auth changes.
func (a *LocalAuth) Subscribe(fn func(port.AuthEvent)) func() {
	return a.state.Subscribe(fn)
}

// ============================================================
// SignUp
// ============================================================

// SignUp creates the login and its empty profile, then signs in.
func (a *LocalAuth) SignUp(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "LocalAuth.SignUp")
	defer span.End()

	email := normalizeEmail(creds.Email)
	if !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "invalid email"}
	}

	existing, err := a.store.FindAccount(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check existing account: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := domain.Account{UserID: a.newID(), Email: email, PasswordHash: string(hash)}
	if err := a.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	a.logger.Info("account registered", zap.String("user_id", account.UserID))
	return a.startSession(account)
}

// ============================================================
// SignIn / SignOut
// ============================================================

// SignIn checks the password and issues an access token.
func (a *LocalAuth) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "LocalAuth.SignIn")
	defer span.End()

	account, err := a.store.FindAccount(ctx, normalizeEmail(creds.Email))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid login credentials"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(creds.Password)); err != nil {
		a.logger.Warn("login: failed password attempt", zap.String("user_id", account.UserID))
		return nil, &domain.ErrUnauthorized{Message: "invalid login credentials"}
	}

	span.SetAttributes(attribute.String("user.id", account.UserID))
	a.logger.Info("user signed in", zap.String("user_id", account.UserID))
	return a.startSession(*account)
}

// SignOut clears the session. Issued tokens stay valid until they expire.
func (a *LocalAuth) SignOut(ctx context.Context) error {
	_, span := authTracer.Start(ctx, "LocalAuth.SignOut")
	defer span.End()

	if s := a.state.Current(); s != nil {
		a.logger.Info("user signed out", zap.String("user_id", s.User.ID))
	}
	a.state.Set(port.AuthSignedOut, nil)
	return nil
}

func (a *LocalAuth) startSession(account domain.Account) (*domain.Session, error) {
	token, expiresAt, err := a.signAccessToken(account.UserID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	s := &domain.Session{
		AccessToken: token,
		ExpiresAt:   expiresAt.Unix(),
		User:        domain.User{ID: account.UserID, Email: account.Email},
	}
	a.state.Set(port.AuthSignedIn, s)
	return s, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
