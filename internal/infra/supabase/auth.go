package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/authstate"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ============================================================
// Auth (implements port.AuthProvider via GoTrue)
// ============================================================

// Auth keeps the process session and talks to /auth/v1.
type Auth struct {
	client    *Client
	jwtSecret []byte
	state     authstate.Holder
	now       func() time.Time
}

// NewAuth creates a GoTrue-backed provider. With a non-empty jwtSecret access
// tokens are verified locally instead of calling /auth/v1/user.
func NewAuth(c *Client, jwtSecret string) *Auth {
	a := &Auth{client: c, now: time.Now}
	if jwtSecret != "" {
		a.jwtSecret = []byte(jwtSecret)
	}
	return a
}

type goTrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type goTrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         goTrueUser `json:"user"`
}

type goTrueError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e goTrueError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return "authentication failed"
}

func (a *Auth) toSession(s goTrueSession) *domain.Session {
	expiresAt := s.ExpiresAt
	if expiresAt == 0 && s.ExpiresIn > 0 {
		expiresAt = a.now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	return &domain.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         domain.User{ID: s.User.ID, Email: s.User.Email},
	}
}

// doAuth calls GoTrue. token authorises the call as a user; empty means anon.
// 400/401/403/422 responses surface as *domain.ErrUnauthorized.
func (a *Auth) doAuth(ctx context.Context, method, path, token string, payload any) ([]byte, error) {
	var body []byte
	err := resilience.Execute(a.client.cb, func() error {
		var reader *bytes.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return resilience.Permanent(err)
			}
			reader = bytes.NewReader(raw)
		} else {
			reader = bytes.NewReader(nil)
		}

		endpoint := fmt.Sprintf("%s/auth/v1/%s", a.client.baseURL, path)
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return resilience.Permanent(err)
		}
		if token == "" {
			token = a.client.apiKey
		}
		req.Header.Set("apikey", a.client.apiKey)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.httpClient.Do(req)
		if err != nil {
			a.client.logger.Error("supabase: auth request failed",
				zap.String("path", path),
				zap.Error(err),
			)
			return err
		}
		defer resp.Body.Close()

		body, err = readBody(resp)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnprocessableEntity:
			var ge goTrueError
			_ = json.Unmarshal(body, &ge)
			return resilience.Permanent(&domain.ErrUnauthorized{Message: ge.text()})
		default:
			a.client.logger.Warn("supabase: auth non-2xx",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.String("body", string(body)),
			)
			return &statusError{method: method, status: resp.StatusCode, body: string(body)}
		}
	})

	if err != nil {
		var unauthorized *domain.ErrUnauthorized
		if errors.As(err, &unauthorized) {
			return nil, unauthorized
		}
		return nil, &domain.ErrExternalService{Service: "supabase/auth", Err: err}
	}
	return body, nil
}

// GetSession returns the current session, refreshing it first when expired.
func (a *Auth) GetSession(ctx context.Context) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSession")
	defer span.End()

	s := a.state.Current()
	if s == nil || s.ExpiresAt == 0 || a.now().Unix() < s.ExpiresAt {
		return s, nil
	}
	if s.RefreshToken == "" {
		a.state.Set(port.AuthSignedOut, nil)
		return nil, nil
	}

	body, err := a.doAuth(ctx, http.MethodPost, "token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": s.RefreshToken,
	})
	if err != nil {
		var unauthorized *domain.ErrUnauthorized
		if errors.As(err, &unauthorized) {
			a.state.Set(port.AuthSignedOut, nil)
			return nil, nil
		}
		return nil, err
	}

	var gs goTrueSession
	if err := json.Unmarshal(body, &gs); err != nil {
		return nil, fmt.Errorf("decode refreshed session: %w", err)
	}
	next := a.toSession(gs)
	a.state.Set(port.AuthTokenRefreshed, next)
	return next, nil
}

// AccessToken returns the current session's token when it belongs to
// userID, or "" otherwise.
func (a *Auth) AccessToken(userID string) string {
	s := a.state.Current()
	if s == nil || s.User.ID != userID {
		return ""
	}
	return s.AccessToken
}

// SignUp registers an account. When the project requires email
// confirmation no session is issued and (nil, nil) is returned.
func (a *Auth) SignUp(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignUp")
	defer span.End()

	body, err := a.doAuth(ctx, http.MethodPost, "signup", "", creds)
	if err != nil {
		return nil, err
	}

	var gs goTrueSession
	if err := json.Unmarshal(body, &gs); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	if gs.AccessToken == "" {
		a.client.logger.Info("supabase: signup awaiting email confirmation", zap.String("email", creds.Email))
		return nil, nil
	}

	s := a.toSession(gs)
	a.state.Set(port.AuthSignedIn, s)
	return s, nil
}

// SignIn exchanges email and password for a session.
func (a *Auth) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignIn")
	defer span.End()

	body, err := a.doAuth(ctx, http.MethodPost, "token?grant_type=password", "", creds)
	if err != nil {
		return nil, err
	}

	var gs goTrueSession
	if err := json.Unmarshal(body, &gs); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	s := a.toSession(gs)
	a.state.Set(port.AuthSignedIn, s)
	return s, nil
}

// SignOut revokes the session remotely and always clears it locally.
func (a *Auth) SignOut(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	s := a.state.Current()
	var err error
	if s != nil {
		_, err = a.doAuth(ctx, http.MethodPost, "logout", s.AccessToken, nil)
		if err != nil {
			a.client.logger.Warn("supabase: remote logout failed", zap.Error(err))
		}
	}
	a.state.Set(port.AuthSignedOut, nil)
	return err
}

// Subscribe registers fn for auth changes.
func (a *Auth) Subscribe(fn func(port.AuthEvent)) func() {
	return a.state.Subscribe(fn)
}

type supabaseClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserFromToken validates an access token.
func (a *Auth) UserFromToken(ctx context.Context, token string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UserFromToken")
	defer span.End()

	if a.jwtSecret != nil {
		parsed, err := jwt.ParseWithClaims(token, &supabaseClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.jwtSecret, nil
		})
		if err != nil {
			return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
		}
		claims, ok := parsed.Claims.(*supabaseClaims)
		if !ok || !parsed.Valid || claims.Subject == "" {
			return nil, &domain.ErrUnauthorized{Message: "invalid token"}
		}
		return &domain.User{ID: claims.Subject, Email: claims.Email}, nil
	}

	body, err := a.doAuth(ctx, http.MethodGet, "user", token, nil)
	if err != nil {
		return nil, err
	}
	var u goTrueUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if u.ID == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return &domain.User{ID: u.ID, Email: u.Email}, nil
}
