package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string

	// Development seed data
	TestUserID    string
	TestProjectID string

	// Logging
	LogDir      string // empty = stdout only
	LogMaxFiles int

	// Ingestion
	Limits             Limits
	LimitsFile         string // optional YAML overrides
	UploadConcurrency  int
	CommitPolicy       string
	SpoolDir           string
	SessionIdleTimeout time.Duration

	// Remote object store
	ObjectStore       string // "local" or "gcs"
	LocalStoreDir     string
	LocalStoreBaseURL string
	GCSBucket         string
	GCSCredentials    string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct JWKS URL from Supabase URL
	jwksURL := supabaseURL + "/auth/v1/.well-known/jwks.json"

	limits := DefaultLimits()
	limits.MaxDepth = getEnvInt("INGEST_MAX_DEPTH", limits.MaxDepth)
	limits.MaxFiles = getEnvInt("INGEST_MAX_FILES", limits.MaxFiles)
	limits.MaxFileSize = int64(getEnvInt("INGEST_MAX_FILE_SIZE", int(limits.MaxFileSize)))
	if types := getEnv("INGEST_ALLOWED_TYPES", ""); types != "" {
		limits.AllowedContentTypes = splitList(types)
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		SupabaseURL:     supabaseURL,
		SupabaseDBURL:   getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL: jwksURL,
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     tablePrefix,

		TestUserID:    getEnv("TEST_USER_ID", "00000000-0000-0000-0000-000000000001"),
		TestProjectID: getEnv("TEST_PROJECT_ID", "00000000-0000-0000-0000-000000000001"),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),

		Limits:             limits,
		LimitsFile:         getEnv("INGEST_LIMITS_FILE", ""),
		UploadConcurrency:  getEnvInt("UPLOAD_CONCURRENCY", 4),
		CommitPolicy:       getEnv("COMMIT_POLICY", "partial"),
		SpoolDir:           getEnv("SPOOL_DIR", os.TempDir()),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		ObjectStore:       getEnv("OBJECT_STORE", "local"),
		LocalStoreDir:     getEnv("LOCAL_STORE_DIR", "./data/objects"),
		LocalStoreBaseURL: getEnv("LOCAL_STORE_BASE_URL", "http://localhost:8080/objects"),
		GCSBucket:         getEnv("GCS_BUCKET", ""),
		GCSCredentials:    getEnv("GCS_CREDENTIALS_FILE", ""),
	}
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to the default when the variable is unset or not a number
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the ingestion settings.
func (c *Config) Validate() error {
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.UploadConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.CommitPolicy, validation.In("partial", "all_or_nothing")),
		validation.Field(&c.ObjectStore, validation.In("local", "gcs")),
		validation.Field(&c.GCSBucket, validation.When(c.ObjectStore == "gcs", validation.Required)),
		validation.Field(&c.SessionIdleTimeout, validation.Required, validation.Min(time.Minute)),
	)
}

// ApplyLimitsFile merges the YAML overrides named by LimitsFile, if any.
func (c *Config) ApplyLimitsFile() error {
	if c.LimitsFile == "" {
		return nil
	}
	limits, err := LoadLimitsFile(c.LimitsFile, c.Limits)
	if err != nil {
		return err
	}
	c.Limits = limits
	return nil
}
