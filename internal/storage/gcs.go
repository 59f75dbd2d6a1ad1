package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	ingestSvc "assetdrop/internal/domain/services/ingest"
)

// GCSStore uploads payloads to a Google Cloud Storage bucket.
type GCSStore struct {
	client     *storage.Client
	bucketName string
	logger     *slog.Logger
}

// NewGCSStore creates a store for bucketName. An empty credentialsFile uses
// application default credentials.
func NewGCSStore(ctx context.Context, bucketName, credentialsFile string, logger *slog.Logger) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSStore{
		client:     client,
		bucketName: bucketName,
		logger:     logger,
	}, nil
}

// Upload writes obj under a fresh key and returns its public URL.
func (s *GCSStore) Upload(ctx context.Context, projectID string, obj ingestSvc.Object) (string, error) {
	key := objectKey(projectID, obj.Name)

	writer := s.client.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	writer.ContentType = obj.ContentType
	if writer.ContentType == "" {
		writer.ContentType = "application/octet-stream"
	}
	writer.Metadata = map[string]string{"original-name": obj.Name}

	if _, err := io.Copy(writer, obj.Body); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to copy %s to GCS object %s: %w", obj.Name, key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}

	s.logger.Debug("object uploaded", "bucket", s.bucketName, "key", key, "size", obj.Size)
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, key), nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
