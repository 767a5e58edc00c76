package handler

import (
	"net/http"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Invoices & quotations
// ============================================================

type statusRequest struct {
	Status string `json:"status"`
}

func newInvoiceHandler(docs *service.Documents, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices")
		defer span.End()

		var draft domain.Invoice
		if !decodeBody(w, r, &draft) {
			return
		}

		inv, err := docs.NewInvoice(ctx, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

func duplicateInvoiceHandler(docs *service.Documents, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices/{id}/duplicate")
		defer span.End()

		inv, err := docs.DuplicateInvoice(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

func invoiceStatusHandler(docs *service.Documents, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/invoices/{id}/status")
		defer span.End()

		var req statusRequest
		if !decodeBody(w, r, &req) {
			return
		}

		inv, err := docs.SetInvoiceStatus(ctx, chi.URLParam(r, "id"), domain.InvoiceStatus(req.Status))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func newQuotationHandler(docs *service.Documents, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotations")
		defer span.End()

		var draft domain.Quotation
		if !decodeBody(w, r, &draft) {
			return
		}

		q, err := docs.NewQuotation(ctx, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func quotationStatusHandler(docs *service.Documents, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/quotations/{id}/status")
		defer span.End()

		var req statusRequest
		if !decodeBody(w, r, &req) {
			return
		}

		q, err := docs.SetQuotationStatus(ctx, chi.URLParam(r, "id"), domain.QuotationStatus(req.Status))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func convertQuotationHandler(docs *service.Documents, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotations/{id}/convert")
		defer span.End()

		inv, err := docs.ConvertQuotation(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}
