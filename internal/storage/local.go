package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ingestSvc "assetdrop/internal/domain/services/ingest"
)

// LocalStore writes payloads under a directory and returns URLs below baseURL.
// It backs development setups and tests.
type LocalStore struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, baseURL string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Upload copies obj to a fresh key. A partial file is removed on failure.
func (s *LocalStore) Upload(ctx context.Context, projectID string, obj ingestSvc.Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := objectKey(projectID, obj.Name)
	dest := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create object %s: %w", key, err)
	}
	_, err = io.Copy(f, &ctxReader{ctx: ctx, r: obj.Body})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("write object %s: %w", key, err)
	}

	s.logger.Debug("object stored", "key", key, "size", obj.Size)
	return s.baseURL + "/" + key, nil
}

// Dir is the root directory objects are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
