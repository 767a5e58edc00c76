package handler

import (
	"net/http"

	"github.com/boddenberg/invoicing-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Time tracking
// ============================================================

func timerStatusHandler(timer *service.Timer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, timer.Status())
	}
}

func timerStartHandler(timer *service.Timer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft service.TimerDraft
		if r.ContentLength != 0 && !decodeBody(w, r, &draft) {
			return
		}

		if err := timer.Start(draft); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, timer.Status())
	}
}

func timerPauseHandler(timer *service.Timer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer.Pause()
		writeJSON(w, http.StatusOK, timer.Status())
	}
}

func timerResumeHandler(timer *service.Timer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := timer.Resume(); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, timer.Status())
	}
}

// timerStopHandler records the tracked time. Nothing elapsed means no entry.
func timerStopHandler(timer *service.Timer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/timer/stop")
		defer span.End()

		entry := timer.Stop(ctx)
		if entry == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}
}
