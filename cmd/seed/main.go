package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"assetdrop/internal/config"
	"assetdrop/internal/repository/postgres"
)

// seedCatalog is the association targets created for the test project.
var seedCatalog = []struct{ id, label string }{
	{"ITEM-001", "Replace cracked facade panel"},
	{"ITEM-002", "Repaint stairwell B"},
	{"ITEM-003", "Inspect roof drainage"},
	{"ITEM-004", "Fix lobby lighting"},
}

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed data")
	clearData := flag.Bool("clear-data", false, "Clear all asset records of the test project (keep schema)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("BLOCKED: cannot run --drop-tables or --clear-data in production")
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	log.Printf("Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	if *dropTables {
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("Tables dropped")
	}

	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("Schema ready")

	if *schemaOnly {
		return
	}

	if *clearData {
		tag, err := pool.Exec(ctx, "DELETE FROM "+tables.Assets+" WHERE project_id = $1", cfg.TestProjectID)
		if err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Printf("Cleared %d asset records", tag.RowsAffected())
		return
	}

	if err := ensureTestProject(ctx, pool, tables, cfg.TestProjectID, cfg.TestUserID); err != nil {
		log.Fatalf("Failed to ensure test project: %v", err)
	}
	if err := seedCatalogItems(ctx, pool, tables, cfg.TestProjectID); err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}

	log.Printf("Seeding complete (project %s, user %s, %d catalog items)", cfg.TestProjectID, cfg.TestUserID, len(seedCatalog))
}

// ensureTestProject creates the test project if it doesn't exist
func ensureTestProject(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, projectID, userID string) error {
	query := `
		INSERT INTO ` + tables.Projects + ` (id, user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := pool.Exec(ctx, query, projectID, userID, "Test Project", time.Now())
	return err
}

func seedCatalogItems(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, projectID string) error {
	query := `
		INSERT INTO ` + tables.CatalogItems + ` (id, project_id, label)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, id) DO UPDATE SET label = EXCLUDED.label
	`
	for _, item := range seedCatalog {
		if _, err := pool.Exec(ctx, query, item.id, projectID, item.label); err != nil {
			return err
		}
	}
	return nil
}

// runSchema creates tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Projects + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.CatalogItems + ` (
			id TEXT NOT NULL,
			project_id UUID NOT NULL REFERENCES ` + tables.Projects + `(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			PRIMARY KEY (project_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + tables.Assets + ` (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES ` + tables.Projects + `(id) ON DELETE CASCADE,
			parent_id UUID REFERENCES ` + tables.Assets + `(id) ON DELETE CASCADE,
			kind TEXT NOT NULL CHECK (kind IN ('folder', 'file')),
			name TEXT NOT NULL,
			link TEXT NOT NULL DEFAULT '',
			association_ref TEXT,
			remote_ref TEXT,
			content_type TEXT,
			size BIGINT NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0,
			created_by UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `assets_project_parent ON ` + tables.Assets + `(project_id, parent_id, position)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	for _, table := range []string{tables.Assets, tables.CatalogItems, tables.Projects} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return err
		}
		log.Printf("  dropped %s", table)
	}
	return nil
}
