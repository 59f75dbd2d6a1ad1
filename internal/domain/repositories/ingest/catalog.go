package ingest

import (
	"context"

	"assetdrop/internal/domain/models/ingest"
)

// CatalogRepository reads the assignable association targets of a project.
// It is read-only.
type CatalogRepository interface {
	ListItems(ctx context.Context, projectID string) ([]ingest.CatalogItem, error)
}
