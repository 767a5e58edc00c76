// Package blob stores uploaded files on the local filesystem for the
// self-hosted backends. Files are served back under PublicURL.
package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("blob")

var _ port.BlobStorage = (*Dir)(nil)

// Dir is a BlobStorage rooted at a directory.
type Dir struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

// NewDir creates the root directory if needed. baseURL is the public prefix
// the files are served under, e.g. "http://localhost:8080/files".
func NewDir(root, baseURL string, logger *zap.Logger) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Dir{root: root, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}, nil
}

// Root is the directory files are written to.
func (d *Dir) Root() string { return d.root }

// cleanKey rejects keys escaping the root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)
	if k == "/" || strings.Contains(key, "..") {
		return "", &domain.ErrValidation{Field: "key", Message: "invalid object key"}
	}
	return strings.TrimPrefix(k, "/"), nil
}

// Upload writes data under key, replacing any existing file.
func (d *Dir) Upload(ctx context.Context, key, contentType string, data []byte) error {
	_, span := tracer.Start(ctx, "Blob.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("key", key),
		attribute.String("content_type", contentType),
		attribute.Int("bytes", len(data)),
	)

	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	dst := filepath.Join(d.root, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("store object: %w", err)
	}

	d.logger.Debug("blob: stored object", zap.String("key", k), zap.Int("bytes", len(data)))
	return nil
}

// PublicURL returns the address key is served under.
func (d *Dir) PublicURL(key string) string {
	return d.baseURL + "/" + strings.TrimPrefix(key, "/")
}
