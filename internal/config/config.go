package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sink kinds.
const (
	SinkDir       = "dir"
	SinkPathstore = "pathstore"
	SinkMinio     = "minio"
)

type Config struct {
	Port string

	// Auth
	NovelsplitAPIKey string

	// Language model (optional)
	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMBaseURL  string
	LLMMode     string // default mode for jobs that do not ask for one

	// Output
	Sink      string
	OutputDir string

	// Pathstore connection
	PathstoreURL    string
	PathstoreAPIKey string

	// MinIO / S3
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioPrefix    string
	MinioRegion    string
	MinioUseSSL    bool

	// Worker pool
	WorkerCount         int
	MaxQueueSize        int
	MaxConcurrentLLM    int
	MaxConcurrentWrites int

	// Upload limits
	MaxUploadBytes int64

	// Segmentation defaults
	MinBodyRunes  int
	MaxBodyRunes  int
	ChunkMaxRunes int

	// Job state
	JobTTL time.Duration

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load reads configuration from the environment. Variables already set win
// over those in .env files.
func Load(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// A missing .env is normal outside development.
		_ = godotenv.Load(f)
	}

	provider := strings.ToLower(envOr("LLM_PROVIDER", "claude"))
	cfg := Config{
		Port: envOr("PORT", "8090"),

		NovelsplitAPIKey: os.Getenv("NOVELSPLIT_API_KEY"),

		LLMProvider: provider,
		LLMAPIKey:   envOr("LLM_API_KEY", providerKey(provider)),
		LLMModel:    envOr("LLM_MODEL", defaultModel(provider)),
		LLMBaseURL:  os.Getenv("LLM_BASE_URL"),
		LLMMode:     envOr("LLM_MODE", "off"),

		Sink:      strings.ToLower(envOr("SINK", SinkDir)),
		OutputDir: envOr("OUTPUT_DIR", "./out"),

		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		MinioEndpoint:  envOr("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    envOr("MINIO_BUCKET", "novels"),
		MinioPrefix:    os.Getenv("MINIO_PREFIX"),
		MinioRegion:    os.Getenv("MINIO_REGION"),
		MinioUseSSL:    envBool("MINIO_USE_SSL", false),

		WorkerCount:         envInt("WORKER_COUNT", 4),
		MaxQueueSize:        envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentLLM:    envInt("MAX_CONCURRENT_LLM", 5),
		MaxConcurrentWrites: envInt("MAX_CONCURRENT_WRITES", 10),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		MinBodyRunes:  envInt("MIN_BODY_RUNES", 2000),
		MaxBodyRunes:  envInt("MAX_BODY_RUNES", 20000),
		ChunkMaxRunes: envInt("CHUNK_MAX_RUNES", 20000),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
		LogFile:       os.Getenv("LOG_FILE"),
		LogMaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: envInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 28),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentLLM <= 0 {
		cfg.MaxConcurrentLLM = 5
	}
	if cfg.MaxConcurrentWrites <= 0 {
		cfg.MaxConcurrentWrites = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MinBodyRunes < 0 {
		cfg.MinBodyRunes = 0
	}
	if cfg.MaxBodyRunes < 0 {
		cfg.MaxBodyRunes = 0
	}
	if cfg.ChunkMaxRunes <= 0 {
		cfg.ChunkMaxRunes = 20000
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// HasLLM reports whether a language model is configured.
func (c Config) HasLLM() bool {
	return c.LLMAPIKey != ""
}

func (c Config) Validate() error {
	var errs []error
	if c.NovelsplitAPIKey == "" {
		errs = append(errs, fmt.Errorf("NOVELSPLIT_API_KEY is required"))
	}
	switch c.Sink {
	case SinkDir:
		if c.OutputDir == "" {
			errs = append(errs, fmt.Errorf("OUTPUT_DIR is required for the dir sink"))
		}
	case SinkPathstore:
		if c.PathstoreAPIKey == "" {
			errs = append(errs, fmt.Errorf("PATHSTORE_API_KEY is required for the pathstore sink"))
		}
	case SinkMinio:
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			errs = append(errs, fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio sink"))
		}
		if c.MinioBucket == "" {
			errs = append(errs, fmt.Errorf("MINIO_BUCKET is required for the minio sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("SINK must be one of dir, pathstore, minio (got %q)", c.Sink))
	}
	switch c.LLMMode {
	case "off":
	case "verify", "propose":
		if !c.HasLLM() {
			errs = append(errs, fmt.Errorf("LLM_MODE=%s needs LLM_API_KEY", c.LLMMode))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_MODE must be off, verify or propose (got %q)", c.LLMMode))
	}
	if c.MaxBodyRunes > 0 && c.MinBodyRunes > c.MaxBodyRunes {
		errs = append(errs, fmt.Errorf("MIN_BODY_RUNES (%d) exceeds MAX_BODY_RUNES (%d)", c.MinBodyRunes, c.MaxBodyRunes))
	}
	return errors.Join(errs...)
}

func providerKey(provider string) string {
	switch provider {
	case "gemini", "google":
		return os.Getenv("GEMINI_API_KEY")
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

func defaultModel(provider string) string {
	switch provider {
	case "gemini", "google":
		return "gemini-2.0-flash"
	}
	return "claude-sonnet-4-5-20250929"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
