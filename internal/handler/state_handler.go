package handler

import (
	"io"
	"net/http"

	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"
	"github.com/boddenberg/invoicing-bfa-go/internal/service"
	"github.com/boddenberg/invoicing-bfa-go/internal/state"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// State & dispatch
// ============================================================

const maxDispatchBytes = 1 << 20

// reservedActions are driven by the session, never by clients.
var reservedActions = map[state.ActionType]bool{
	state.SetUser:    true,
	state.SetLoading: true,
	state.LoadData:   true,
}

func stateHandler(store *service.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.State())
	}
}

// dispatchHandler applies one action. The reply carries the new snapshot;
// the remote write is still in flight, hence 202.
func dispatchHandler(store *service.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dispatch")
		defer span.End()

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxDispatchBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		action, err := state.DecodeAction(raw)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if reservedActions[action.Type] {
			logger.Warn("dispatch: reserved action", zap.String("action", string(action.Type)))
			writeError(w, http.StatusForbidden, "action is reserved for the session")
			return
		}
		span.SetAttributes(attribute.String("action.type", string(action.Type)))

		writeJSON(w, http.StatusAccepted, store.Dispatch(ctx, action))
	}
}

func syncStatusHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.SyncSnapshot())
	}
}
