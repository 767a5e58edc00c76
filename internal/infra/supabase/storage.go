package supabase

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Storage (implements port.BlobStorage)
// ============================================================

// Storage uploads objects to one public Supabase Storage bucket.
type Storage struct {
	client *Client
	bucket string
}

// NewStorage creates a blob store for bucket.
func NewStorage(c *Client, bucket string) *Storage {
	return &Storage{client: c, bucket: bucket}
}

// Upload stores data under key, replacing any existing object.
func (s *Storage) Upload(ctx context.Context, key, contentType string, data []byte) error {
	ctx, span := tracer.Start(ctx, "Supabase.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("bucket", s.bucket),
		attribute.String("key", key),
		attribute.Int("bytes", len(data)),
	)

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.client.baseURL, s.bucket, strings.TrimPrefix(key, "/"))

	err := resilience.Execute(s.client.cb, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return resilience.Permanent(err)
		}
		s.client.setHeaders(req)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-upsert", "true")

		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			s.client.logger.Error("supabase: upload failed",
				zap.String("key", key),
				zap.Error(err),
			)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := readBody(resp)
			s.client.logger.Warn("supabase: upload non-2xx",
				zap.String("key", key),
				zap.Int("status", resp.StatusCode),
				zap.String("body", string(body)),
			)
			return classify(&statusError{method: http.MethodPost, status: resp.StatusCode, body: string(body)})
		}
		return nil
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/storage", Err: err}
	}

	s.client.logger.Debug("supabase: upload OK", zap.String("key", key))
	return nil
}

// PublicURL returns the public address of key in the bucket.
func (s *Storage) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.client.baseURL, s.bucket, strings.TrimPrefix(key, "/"))
}
