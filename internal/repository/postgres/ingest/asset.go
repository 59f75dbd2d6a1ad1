package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"assetdrop/internal/domain"
	models "assetdrop/internal/domain/models/ingest"
	"assetdrop/internal/domain/repositories"
	ingestRepo "assetdrop/internal/domain/repositories/ingest"
	"assetdrop/internal/repository/postgres"
)

// PostgresAssetRepository implements the AssetRepository interface
type PostgresAssetRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	txm    repositories.TransactionManager
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(config *postgres.RepositoryConfig, txm repositories.TransactionManager) ingestRepo.AssetRepository {
	return &PostgresAssetRepository{
		pool:   config.Pool,
		tables: config.Tables,
		txm:    txm,
	}
}

// GetRecords returns a project's records, parents before children
func (r *PostgresAssetRepository) GetRecords(ctx context.Context, projectID string) ([]models.AssetRecord, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE tree AS (
			SELECT a.*, 0 AS depth
			FROM %[1]s a
			WHERE a.project_id = $1 AND a.parent_id IS NULL
			UNION ALL
			SELECT c.*, t.depth + 1
			FROM %[1]s c
			JOIN tree t ON c.parent_id = t.id
		)
		SELECT id, project_id, parent_id, kind, name, link, association_ref,
		       remote_ref, content_type, size, position, created_by, created_at, updated_at
		FROM tree
		ORDER BY depth, position, created_at
	`, r.tables.Assets)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("get asset records: %w", err)
	}
	defer rows.Close()

	records := []models.AssetRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset records: %w", err)
	}

	return records, nil
}

// Upsert writes records in one transaction, in the given order
func (r *PostgresAssetRepository) Upsert(ctx context.Context, projectID string, records []models.AssetRecord) error {
	for _, rec := range records {
		if rec.ProjectID != projectID {
			return &domain.ValidationError{Message: fmt.Sprintf("record %s belongs to project %s, not %s", rec.ID, rec.ProjectID, projectID)}
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, parent_id, kind, name, link, association_ref,
		                remote_ref, content_type, size, position, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			name = EXCLUDED.name,
			link = EXCLUDED.link,
			association_ref = EXCLUDED.association_ref,
			remote_ref = EXCLUDED.remote_ref,
			content_type = EXCLUDED.content_type,
			size = EXCLUDED.size,
			position = EXCLUDED.position,
			updated_at = EXCLUDED.updated_at
	`, r.tables.Assets)

	return r.txm.ExecTx(ctx, func(txCtx context.Context) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			var parentID *string
			if rec.ParentID != nil {
				pid := string(*rec.ParentID)
				parentID = &pid
			}
			batch.Queue(query,
				string(rec.ID),
				rec.ProjectID,
				parentID,
				string(rec.Kind),
				rec.Name,
				rec.Link,
				rec.AssociationRef,
				rec.RemoteRef,
				rec.ContentType,
				rec.Size,
				rec.Position,
				rec.CreatedBy,
				rec.CreatedAt,
				rec.UpdatedAt,
			)
		}

		executor := postgres.GetExecutor(txCtx, r.pool)
		results := executor.SendBatch(txCtx, batch)
		for _, rec := range records {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				if postgres.IsPgForeignKeyError(err) {
					return fmt.Errorf("record %s: %w", rec.ID, domain.ErrCorruptForest)
				}
				return fmt.Errorf("upsert record %s: %w", rec.ID, err)
			}
		}
		return results.Close()
	})
}

func scanRecord(row pgx.Row) (models.AssetRecord, error) {
	var (
		rec      models.AssetRecord
		id       string
		parentID *string
		kind     string
	)
	err := row.Scan(
		&id,
		&rec.ProjectID,
		&parentID,
		&kind,
		&rec.Name,
		&rec.Link,
		&rec.AssociationRef,
		&rec.RemoteRef,
		&rec.ContentType,
		&rec.Size,
		&rec.Position,
		&rec.CreatedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("scan asset record: %w", err)
	}

	rec.ID = models.FinalID(id)
	rec.Kind = models.NodeKind(kind)
	if parentID != nil {
		pid := models.FinalID(*parentID)
		rec.ParentID = &pid
	}
	return rec, nil
}
