package config

import (
	"fmt"
	"time"

	"github.com/RishiKendai/cellguard/internal/configs/env"
)

// Store drivers
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Object stores
const (
	ObjectStoreMinio      = "minio"
	ObjectStoreHTTP       = "http"
	ObjectStoreFilesystem = "filesystem"
)

// Config holds all configuration for the application
type Config struct {
	// Fragment and relation store
	StoreDriver string
	PostgresDSN string
	MongoURI    string
	MongoDBName string
	SQLitePath  string

	// Notebook objects
	ObjectStore           string
	MinioEndpoint         string
	MinioAccessKey        string
	MinioSecretKey        string
	MinioBucket           string
	MinioUseSSL           bool
	DocumentServiceURL    string
	DocumentServiceAPIKey string
	NotebookDir           string

	// Redis; an empty host disables locks, status and the stream consumer
	RedisHost               string
	RedisPassword           string
	RedisStreamKey          string
	RedisConsumerGroup      string
	RedisDeadLetterKey      string
	StreamRetentionDuration time.Duration
	LockTTL                 time.Duration

	// Rate Limiting
	RateLimitRPS float64

	// Concurrency
	MaxConcurrentChecks int
	FetchConcurrency    int

	// Computation
	ComputationTimeout time.Duration
	DefaultLanguage    string
	DefaultThreshold   float64
	NormalizeLiterals  bool

	// Logging
	LogLevel  string
	LogFormat string

	// Server
	ServerPort  string
	MetricsPort string
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Store
	cfg.StoreDriver = env.GetEnv("STORE_DRIVER", StorePostgres)
	cfg.PostgresDSN = env.GetEnv("POSTGRES_DSN", "")
	cfg.MongoURI = env.GetEnv("MONGO_URI", "")
	cfg.MongoDBName = env.GetEnv("MONGO_DB_NAME", "")
	cfg.SQLitePath = env.GetEnv("SQLITE_PATH", "cellguard.db")

	// Objects
	cfg.ObjectStore = env.GetEnv("OBJECT_STORE", ObjectStoreMinio)
	cfg.MinioEndpoint = env.GetEnv("MINIO_ENDPOINT", "localhost:9000")
	cfg.MinioAccessKey = env.GetEnv("MINIO_ACCESS_KEY", "")
	cfg.MinioSecretKey = env.GetEnv("MINIO_SECRET_KEY", "")
	cfg.MinioBucket = env.GetEnv("MINIO_BUCKET", "notebooks")
	cfg.MinioUseSSL = env.GetEnvBool("MINIO_USE_SSL", false)
	cfg.DocumentServiceURL = env.GetEnv("DOCUMENT_SERVICE_URL", "")
	cfg.DocumentServiceAPIKey = env.GetEnv("DOCUMENT_SERVICE_API_KEY", "")
	cfg.NotebookDir = env.GetEnv("NOTEBOOK_DIR", "")

	// Redis
	cfg.RedisHost = env.GetEnv("REDIS_HOST", "")
	cfg.RedisPassword = env.GetEnv("REDIS_PASSWORD", "")
	cfg.RedisStreamKey = env.GetEnv("REDIS_STREAM_KEY", "cellguard:stream")
	cfg.RedisConsumerGroup = env.GetEnv("REDIS_CONSUMER_GROUP", "cellguard:group")
	cfg.RedisDeadLetterKey = env.GetEnv("REDIS_DEAD_LETTER_KEY", "cellguard:dlq")
	retentionHours := env.GetEnvInt("STREAM_RETENTION_DURATION", 24)
	cfg.StreamRetentionDuration = time.Duration(retentionHours) * time.Hour
	lockSeconds := env.GetEnvInt("LOCK_TTL_SECONDS", 120)
	cfg.LockTTL = time.Duration(lockSeconds) * time.Second

	// Rate Limiting
	cfg.RateLimitRPS = env.GetEnvFloat("RATE_LIMIT_RPS", 10.0)

	// Concurrency
	cfg.MaxConcurrentChecks = env.GetEnvInt("MAX_CONCURRENT_CHECKS", 5)
	cfg.FetchConcurrency = env.GetEnvInt("FETCH_CONCURRENCY", 8)

	// Computation
	timeoutMinutes := env.GetEnvInt("COMPUTATION_TIMEOUT_MINUTES", 10)
	cfg.ComputationTimeout = time.Duration(timeoutMinutes) * time.Minute
	cfg.DefaultLanguage = env.GetEnv("DEFAULT_LANGUAGE", "python")
	cfg.DefaultThreshold = env.GetEnvFloat("DEFAULT_THRESHOLD", 0.5)
	cfg.NormalizeLiterals = env.GetEnvBool("NORMALIZE_LITERALS", true)

	// Logging
	cfg.LogLevel = env.GetEnv("LOG_LEVEL", "info")
	cfg.LogFormat = env.GetEnv("LOG_FORMAT", "json")

	// Server
	cfg.ServerPort = env.GetEnv("SERVER_PORT", "8080")
	cfg.MetricsPort = env.GetEnv("METRICS_PORT", "2112")

	return cfg, nil
}

// RedisEnabled reports whether a Redis host is configured
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
		if c.MongoDBName == "" {
			return fmt.Errorf("MONGO_DB_NAME is required")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER: %s", c.StoreDriver)
	}

	switch c.ObjectStore {
	case ObjectStoreMinio:
		if c.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required")
		}
		if c.MinioBucket == "" {
			return fmt.Errorf("MINIO_BUCKET is required")
		}
	case ObjectStoreHTTP:
		if c.DocumentServiceURL == "" {
			return fmt.Errorf("DOCUMENT_SERVICE_URL is required")
		}
	case ObjectStoreFilesystem:
		if c.NotebookDir == "" {
			return fmt.Errorf("NOTEBOOK_DIR is required")
		}
	default:
		return fmt.Errorf("unknown OBJECT_STORE: %s", c.ObjectStore)
	}

	if c.MaxConcurrentChecks <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_CHECKS must be greater than 0")
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("FETCH_CONCURRENCY must be greater than 0")
	}
	if c.ComputationTimeout <= 0 {
		return fmt.Errorf("COMPUTATION_TIMEOUT_MINUTES must be greater than 0")
	}
	if c.DefaultThreshold < 0 || c.DefaultThreshold > 1 {
		return fmt.Errorf("DEFAULT_THRESHOLD must be within [0, 1]")
	}
	if c.DefaultLanguage == "" {
		return fmt.Errorf("DEFAULT_LANGUAGE is required")
	}
	if c.RedisEnabled() {
		if c.StreamRetentionDuration <= 0 {
			return fmt.Errorf("STREAM_RETENTION_DURATION must be greater than 0")
		}
		if c.LockTTL <= 0 {
			return fmt.Errorf("LOCK_TTL_SECONDS must be greater than 0")
		}
	}
	return nil
}
