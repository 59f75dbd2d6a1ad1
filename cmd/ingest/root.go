package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"assetdrop/internal/config"
	models "assetdrop/internal/domain/models/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
	"assetdrop/internal/repository/postgres"
	postgresIngest "assetdrop/internal/repository/postgres/ingest"
	serviceIngest "assetdrop/internal/service/ingest"
	"assetdrop/internal/service/ingest/source"
	"assetdrop/internal/storage"
)

var (
	userID      string
	link        string
	concurrency int
	policy      string
	dryRun      bool
	verbose     bool
)

func init() {
	rootCmd.Flags().StringVarP(&userID, "user", "u", os.Getenv("INGEST_USER_ID"), "Owner of the project (defaults to $INGEST_USER_ID)")
	rootCmd.Flags().StringVarP(&link, "link", "l", "", "Link applied to every folder that has none")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Parallel uploads (defaults to UPLOAD_CONCURRENCY)")
	rootCmd.Flags().StringVar(&policy, "policy", "", "Commit policy: partial or all_or_nothing (defaults to COMMIT_POLICY)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Scan, validate and order only; the outline goes to stderr and nothing is uploaded or saved")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

var rootCmd = &cobra.Command{
	Use:   "ingest <project-id> <path>...",
	Short: "Ingest local folders and images into a project",
	Long: `Scans the given paths into a batch, validates it, uploads every image
and saves the folder hierarchy as project records. Progress goes to stderr,
the commit result is printed to stdout as JSON.`,
	Args:         cobra.MinimumNArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		cfg := config.Load()
		if concurrency > 0 {
			cfg.UploadConcurrency = concurrency
		}
		if policy != "" {
			cfg.CommitPolicy = policy
		}
		if err := cfg.ApplyLimitsFile(); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		env := cfg.Environment
		if verbose {
			env = "dev"
		}
		logger := config.NewLogger(os.Stderr, env)
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		entries := make([]ingestSvc.Entry, 0, len(args)-1)
		for _, path := range args[1:] {
			entry, err := source.NewFSEntry(path)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		if dryRun {
			return runDryRun(ctx, cfg, entries, cmd.OutOrStdout(), logger)
		}
		return runIngest(ctx, cfg, args[0], entries, cmd.OutOrStdout(), logger)
	},
}

// runIngest drives a full batch through the ingest service.
func runIngest(ctx context.Context, cfg *config.Config, projectID string, entries []ingestSvc.Entry, out io.Writer, logger *slog.Logger) error {
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	txManager := postgres.NewTransactionManager(pool, logger)

	store, closeStore, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	service := serviceIngest.NewIngestService(serviceIngest.ServiceConfig{
		Limits:      cfg.Limits,
		Concurrency: cfg.UploadConcurrency,
		Policy:      models.CommitPolicy(cfg.CommitPolicy),
		Assets:      postgresIngest.NewAssetRepository(repoConfig, txManager),
		Catalog:     postgresIngest.NewCatalogRepository(repoConfig),
		Projects:    postgresIngest.NewProjectRepository(repoConfig),
		Store:       store,
	}, logger)

	view, err := service.CreateBatch(ctx, &ingestSvc.CreateBatchRequest{
		ProjectID: projectID,
		UserID:    userID,
		Entries:   entries,
	})
	if err != nil {
		return err
	}
	printNotifications(view.Notifications)

	if link != "" {
		for _, n := range view.Nodes {
			if n.Kind != models.KindFolder || n.Link != "" {
				continue
			}
			value := link
			if view, err = service.UpdateNode(ctx, userID, view.ID, n.TempID, &ingestSvc.UpdateNodeRequest{Link: &value}); err != nil {
				return err
			}
		}
	}

	if !view.Ready {
		printErrors(view.Nodes)
		_ = service.Discard(ctx, userID, view.ID)
		return fmt.Errorf("batch is not valid; nothing was uploaded")
	}

	result, err := service.Submit(ctx, userID, view.ID, func(p models.Progress) {
		status := "ok"
		if p.Failed {
			status = "failed"
		}
		fmt.Fprintf(os.Stderr, "[%d/%d] %s %s\n", p.Completed, p.Total, p.Name, status)
	})
	if err != nil {
		return err
	}

	if !result.Completed {
		// Retrying from a fresh process is not possible; drop the session.
		_ = service.Discard(ctx, userID, view.ID)
	}

	if err := writeJSON(out, result); err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d uploads failed", len(result.Failed))
	}
	return nil
}

// dryRunReport is printed by --dry-run.
type dryRunReport struct {
	Mode      models.DiscoveryMode `json:"mode"`
	Ready     bool                 `json:"ready"`
	Files     int                  `json:"files"`
	Folders   int                  `json:"folders"`
	Skipped   int                  `json:"skipped"`
	TotalSize string               `json:"total_size"`
	Order     []models.NodeView    `json:"order"`
}

// runDryRun scans, validates and orders without touching any store.
func runDryRun(ctx context.Context, cfg *config.Config, entries []ingestSvc.Entry, out io.Writer, logger *slog.Logger) error {
	ids := serviceIngest.NewIDGenerator()
	notes := serviceIngest.NewCollector()

	result, err := serviceIngest.NewScanner(cfg.Limits, ids, logger).Scan(ctx, entries, serviceIngest.ScanOptions{}, notes)
	printNotifications(notes.Drain())
	if err != nil {
		return err
	}

	batch := models.NewBatch(ids.NewBatchID(), "", userID, result.Mode)
	for _, n := range result.Nodes {
		batch.Insert(n)
		if n.IsFolder() && n.Link == "" {
			n.Link = link
		}
	}
	defer func() {
		for _, n := range batch.Nodes() {
			_ = n.ReleasePayload()
		}
	}()

	ready := serviceIngest.NewValidator().ValidateBatch(batch)
	fmt.Fprintln(os.Stderr, serviceIngest.RenderOutline(batch))
	ordered, err := serviceIngest.Order(batch)
	if err != nil {
		return err
	}

	var total int64
	report := dryRunReport{
		Mode:    result.Mode,
		Ready:   ready,
		Files:   result.Files,
		Folders: result.Folders,
		Skipped: result.Skipped,
		Order:   make([]models.NodeView, 0, len(ordered)),
	}
	for _, n := range ordered {
		total += n.Size
		report.Order = append(report.Order, n.View())
	}
	report.TotalSize = humanize.IBytes(uint64(total))

	if !ready {
		printErrors(report.Order)
	}
	return writeJSON(out, report)
}

func printNotifications(notes []ingestSvc.Notification) {
	for _, n := range notes {
		fmt.Fprintf(os.Stderr, "%s: %s\n", n.Level, n.Message)
	}
}

func printErrors(nodes []models.NodeView) {
	for _, n := range nodes {
		for field, code := range n.Errors {
			fmt.Fprintf(os.Stderr, "invalid: %s (%s): %s %s\n", n.Name, n.Kind, field, code)
		}
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
