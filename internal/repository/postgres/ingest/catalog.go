package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	models "assetdrop/internal/domain/models/ingest"
	ingestRepo "assetdrop/internal/domain/repositories/ingest"
	"assetdrop/internal/repository/postgres"
)

// PostgresCatalogRepository implements the CatalogRepository interface
type PostgresCatalogRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(config *postgres.RepositoryConfig) ingestRepo.CatalogRepository {
	return &PostgresCatalogRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// ListItems returns the catalog items of a project ordered by label
func (r *PostgresCatalogRepository) ListItems(ctx context.Context, projectID string) ([]models.CatalogItem, error) {
	query := fmt.Sprintf(`
		SELECT id, label
		FROM %s
		WHERE project_id = $1
		ORDER BY label, id
	`, r.tables.CatalogItems)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list catalog items: %w", err)
	}
	defer rows.Close()

	items := []models.CatalogItem{}
	for rows.Next() {
		var item models.CatalogItem
		if err := rows.Scan(&item.ID, &item.Label); err != nil {
			return nil, fmt.Errorf("scan catalog item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog items: %w", err)
	}

	return items, nil
}
