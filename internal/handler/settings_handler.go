package handler

import (
	"io"
	"net/http"

	"github.com/boddenberg/invoicing-bfa-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Settings: business logo
// ============================================================

// maxLogoRequestBytes leaves room for multipart framing around a 2 MB image.
const maxLogoRequestBytes = 3 << 20

// uploadLogoHandler accepts a multipart form with a "logo" file field.
func uploadLogoHandler(docs *service.Documents, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/settings/logo")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, maxLogoRequestBytes)
		file, header, err := r.FormFile("logo")
		if err != nil {
			writeError(w, http.StatusBadRequest, "logo file is required")
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read logo")
			return
		}

		url, err := docs.UploadLogo(ctx, header.Filename, content)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"businessLogo": url})
	}
}

func removeLogoHandler(docs *service.Documents) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs.RemoveLogo(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

