package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/report"
	"github.com/boddenberg/invoicing-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Reports
// ============================================================

const (
	defaultReportMonths = 6
	maxReportMonths     = 24
)

func reportSummaryHandler(store *service.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		months := defaultReportMonths
		if v := r.URL.Query().Get("months"); v != "" {
			if m, err := strconv.Atoi(v); err == nil && m > 0 && m <= maxReportMonths {
				months = m
			}
		}
		writeJSON(w, http.StatusOK, report.Build(store.State(), time.Now(), months))
	}
}

func reportExportHandler(store *service.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := fmt.Sprintf("financial-report-%s.csv", domain.Today(time.Now()))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

		if err := report.WriteCSV(w, store.State()); err != nil {
			logger.Error("report: csv export failed", zap.Error(err))
		}
	}
}
