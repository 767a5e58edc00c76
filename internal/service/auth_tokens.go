package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// ============================================================
// Token validation, used by the bearer middleware
// ============================================================

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

// UserFromToken validates an access token issued by SignIn or SignUp.
func (a *LocalAuth) UserFromToken(ctx context.Context, token string) (*domain.User, error) {
	_, span := authTracer.Start(ctx, "LocalAuth.UserFromToken")
	defer span.End()

	claims, err := a.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &domain.User{ID: claims.Sub, Email: claims.Email}, nil
}

func (a *LocalAuth) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Sub == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}

	return claims, nil
}

// ============================================================
// Internal JWT helpers
// ============================================================

func (a *LocalAuth) signAccessToken(userID, email string) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.accessTTL)
	claims := JWTClaims{
		Sub:   userID,
		Email: email,
		Type:  "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "invoicing-bfa",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.jwtSecret)
	return signed, expiresAt, err
}
