package ingest

import (
	"context"

	"assetdrop/internal/domain/models/ingest"
)

// ProjectRepository defines data access operations for projects
type ProjectRepository interface {
	// GetByID retrieves a live (not soft-deleted) project owned by userID
	GetByID(ctx context.Context, id, userID string) (*ingest.Project, error)
}
