package ingest

import (
	"context"

	"assetdrop/internal/domain/models/ingest"
)

// AssetRepository is the project store: persisted hierarchical asset records.
type AssetRepository interface {
	// GetRecords returns every record of a project, parents before children.
	GetRecords(ctx context.Context, projectID string) ([]ingest.AssetRecord, error)

	// Upsert writes records in the given order. Parents precede children.
	// Either every record is written or none is.
	Upsert(ctx context.Context, projectID string, records []ingest.AssetRecord) error
}
