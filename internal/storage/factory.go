package storage

import (
	"context"
	"fmt"
	"log/slog"

	"assetdrop/internal/config"
	ingestSvc "assetdrop/internal/domain/services/ingest"
)

// New builds the object store selected by cfg.ObjectStore. The returned
// close func is never nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ingestSvc.ObjectStore, func() error, error) {
	switch cfg.ObjectStore {
	case "gcs":
		store, err := NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentials, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "local", "":
		store, err := NewLocalStore(cfg.LocalStoreDir, cfg.LocalStoreBaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown object store %q", cfg.ObjectStore)
	}
}
