package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"assetdrop/internal/auth"
	"assetdrop/internal/config"
	models "assetdrop/internal/domain/models/ingest"
	"assetdrop/internal/handler"
	"assetdrop/internal/handler/sse"
	"assetdrop/internal/httputil"
	"assetdrop/internal/middleware"
	"assetdrop/internal/repository/postgres"
	postgresIngest "assetdrop/internal/repository/postgres/ingest"
	serviceIngest "assetdrop/internal/service/ingest"
	"assetdrop/internal/service/ingest/source"
	"assetdrop/internal/storage"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.ApplyLimitsFile(); err != nil {
		log.Fatalf("Failed to load limits file: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Log to stdout, and to a rotated file when LOG_DIR is set
	var logOutput io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, "server", cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer func() { _ = logFile.Close() }()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}
	logger := config.NewLogger(logOutput, cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"object_store", cfg.ObjectStore,
		"commit_policy", cfg.CommitPolicy,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwtVerifier, err := auth.NewJWTVerifier(ctx, cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer func() { _ = jwtVerifier.Close() }()

	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	txManager := postgres.NewTransactionManager(pool, logger)
	projectRepo := postgresIngest.NewProjectRepository(repoConfig)
	catalogRepo := postgresIngest.NewCatalogRepository(repoConfig)
	assetRepo := postgresIngest.NewAssetRepository(repoConfig, txManager)

	objectStore, closeStore, err := storage.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}
	defer func() { _ = closeStore() }()

	spooler, err := source.NewSpooler(cfg.SpoolDir)
	if err != nil {
		log.Fatalf("Failed to create spool directory: %v", err)
	}

	// Create services
	sessions := serviceIngest.NewSessionStore(logger)
	go sessions.RunJanitor(ctx, time.Minute, cfg.SessionIdleTimeout)

	ingestService := serviceIngest.NewIngestService(serviceIngest.ServiceConfig{
		Limits:      cfg.Limits,
		Concurrency: cfg.UploadConcurrency,
		Policy:      models.CommitPolicy(cfg.CommitPolicy),
		Assets:      assetRepo,
		Catalog:     catalogRepo,
		Projects:    projectRepo,
		Store:       objectStore,
		Sessions:    sessions,
	}, logger)
	treeService := serviceIngest.NewAssetTreeService(assetRepo, projectRepo, logger)

	// Create handlers; one request may carry a full batch plus multipart overhead
	maxUpload := int64(cfg.Limits.MaxFiles)*cfg.Limits.MaxFileSize + 10<<20
	ingestHandler := handler.NewIngestHandler(ingestService, spooler, sse.DefaultConfig(), maxUpload, logger)
	treeHandler := handler.NewTreeHandler(treeService, logger)

	logger.Info("services initialized")

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Batch routes
	mux.HandleFunc("POST /api/projects/{id}/batches", ingestHandler.CreateBatch)
	mux.HandleFunc("GET /api/batches/{id}", ingestHandler.GetBatch)
	mux.HandleFunc("DELETE /api/batches/{id}", ingestHandler.Discard)
	mux.HandleFunc("POST /api/batches/{id}/folders", ingestHandler.AddFolder)
	mux.HandleFunc("POST /api/batches/{id}/files", ingestHandler.AddFiles)
	mux.HandleFunc("PATCH /api/batches/{id}/nodes/{nodeId}", ingestHandler.UpdateNode)
	mux.HandleFunc("DELETE /api/batches/{id}/nodes/{nodeId}", ingestHandler.RemoveNode)
	mux.HandleFunc("POST /api/batches/{id}/nodes/{nodeId}/association", ingestHandler.AssignAssociation)
	mux.HandleFunc("POST /api/batches/{id}/validate", ingestHandler.Validate)
	mux.HandleFunc("POST /api/batches/{id}/submit", ingestHandler.Submit)

	// Project routes
	mux.HandleFunc("GET /api/projects/{id}/catalog", ingestHandler.ListCatalog)
	mux.HandleFunc("GET /api/projects/{id}/assets", treeHandler.GetTree)

	if cfg.ObjectStore == "local" {
		mux.Handle("GET /objects/", http.StripPrefix("/objects/", http.FileServer(http.Dir(cfg.LocalStoreDir))))
	}

	// Build middleware chain
	// Order: CORS → Recovery → Logging → Auth → Routes
	var h http.Handler = mux
	h = middleware.AuthMiddleware(jwtVerifier)(h)
	h = middleware.RequestLogger(logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  5 * time.Minute, // large multipart uploads
		WriteTimeout: 0,               // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped", "open_batches", sessions.Len())
}
