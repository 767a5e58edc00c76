package handler

import (
	"net/http"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Session
// ============================================================

type sessionResponse struct {
	Session              *domain.Session       `json:"session,omitempty"`
	Status               service.SessionStatus `json:"status"`
	ConfirmationRequired bool                  `json:"confirmationRequired,omitempty"`
}

func sessionStatusHandler(session *service.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, session.Status())
	}
}

func signUpHandler(session *service.Session, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/session/signup")
		defer span.End()

		var creds domain.Credentials
		if !decodeBody(w, r, &creds) {
			return
		}

		s, err := session.SignUp(ctx, creds)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if s == nil {
			// the account exists but must be confirmed by email first
			writeJSON(w, http.StatusAccepted, sessionResponse{Status: session.Status(), ConfirmationRequired: true})
			return
		}

		logger.Info("session: signed up", zap.String("user_id", s.User.ID))
		writeJSON(w, http.StatusCreated, sessionResponse{Session: s, Status: session.Status()})
	}
}

func signInHandler(session *service.Session, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/session/signin")
		defer span.End()

		var creds domain.Credentials
		if !decodeBody(w, r, &creds) {
			return
		}

		s, err := session.SignIn(ctx, creds)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		logger.Info("session: signed in", zap.String("user_id", s.User.ID))
		writeJSON(w, http.StatusOK, sessionResponse{Session: s, Status: session.Status()})
	}
}

func signOutHandler(session *service.Session, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/session/signout")
		defer span.End()

		if err := session.SignOut(ctx); err != nil {
			// the local session is cleared even when the remote logout fails
			logger.Warn("session: sign out incomplete", zap.Error(err))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
