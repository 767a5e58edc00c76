// Package handler exposes the account store and its helpers over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"
	"github.com/boddenberg/invoicing-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router serves.
type Services struct {
	Store     *service.Store
	Session   *service.Session
	Timer     *service.Timer
	Documents *service.Documents
	// TokenCache memoises bearer token resolution. Optional.
	TokenCache port.Cache[domain.User]
	// BlobDir is served under /files/ when set (local blob storage).
	BlobDir string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.PropagateTrace)
	r.Use(observability.AccessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(requestDurationMiddleware(metrics))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Session))
	r.Get("/readyz", readyzHandler(svc.Session))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if svc.BlobDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(svc.BlobDir))))
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Session (public)
		// =============================================
		r.Get("/session", sessionStatusHandler(svc.Session))
		r.Post("/session/signup", signUpHandler(svc.Session, logger))
		r.Post("/session/signin", signInHandler(svc.Session, logger))
		r.Post("/session/signout", signOutHandler(svc.Session, logger))

		// =============================================
		// Everything below needs a bearer token
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(svc.Session, svc.TokenCache, metrics, logger))

			// State & dispatch
			r.Get("/state", stateHandler(svc.Store))
			r.Post("/dispatch", dispatchHandler(svc.Store, logger))
			r.Get("/sync/status", syncStatusHandler(metrics))

			// Documents
			r.Post("/invoices", newInvoiceHandler(svc.Documents, logger))
			r.Post("/invoices/{id}/duplicate", duplicateInvoiceHandler(svc.Documents, logger))
			r.Put("/invoices/{id}/status", invoiceStatusHandler(svc.Documents, logger))
			r.Post("/quotations", newQuotationHandler(svc.Documents, logger))
			r.Put("/quotations/{id}/status", quotationStatusHandler(svc.Documents, logger))
			r.Post("/quotations/{id}/convert", convertQuotationHandler(svc.Documents, logger))

			// Time tracking
			r.Get("/timer", timerStatusHandler(svc.Timer))
			r.Post("/timer/start", timerStartHandler(svc.Timer, logger))
			r.Post("/timer/pause", timerPauseHandler(svc.Timer))
			r.Post("/timer/resume", timerResumeHandler(svc.Timer, logger))
			r.Post("/timer/stop", timerStopHandler(svc.Timer))

			// Settings
			r.Put("/settings/logo", uploadLogoHandler(svc.Documents, logger))
			r.Delete("/settings/logo", removeLogoHandler(svc.Documents))

			// Reports
			r.Get("/reports/summary", reportSummaryHandler(svc.Store))
			r.Get("/reports/export.csv", reportExportHandler(svc.Store, logger))
		})
	})

	return r
}

func requestDurationMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			pattern := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				pattern = rc.RoutePattern()
			}
			metrics.RecordRequestDuration(r.Method+" "+pattern, time.Since(start))
		})
	}
}

func healthzHandler(session *service.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if session != nil {
			resp["session"] = string(session.Status().Phase)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// readyzHandler reports ready once session resolution has settled.
func readyzHandler(session *service.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if session != nil && session.Status().Phase != service.PhaseReady {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
