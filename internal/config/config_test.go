package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("REDIS_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, ObjectStoreMinio, cfg.ObjectStore)
	assert.Equal(t, "python", cfg.DefaultLanguage)
	assert.Equal(t, 0.5, cfg.DefaultThreshold)
	assert.True(t, cfg.NormalizeLiterals)
	assert.Equal(t, 10*time.Minute, cfg.ComputationTimeout)
	assert.Equal(t, 2*time.Minute, cfg.LockTTL)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreSQLite)
	t.Setenv("DEFAULT_THRESHOLD", "0.8")
	t.Setenv("NORMALIZE_LITERALS", "false")
	t.Setenv("REDIS_HOST", "localhost:6379")
	t.Setenv("STREAM_RETENTION_DURATION", "48")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, 0.8, cfg.DefaultThreshold)
	assert.False(t, cfg.NormalizeLiterals)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 48*time.Hour, cfg.StreamRetentionDuration)
}

func validConfig() Config {
	return Config{
		StoreDriver:             StoreMemory,
		ObjectStore:             ObjectStoreFilesystem,
		NotebookDir:             "/data/notebooks",
		MaxConcurrentChecks:     1,
		FetchConcurrency:        1,
		ComputationTimeout:      time.Minute,
		DefaultLanguage:         "python",
		DefaultThreshold:        0.5,
		StreamRetentionDuration: time.Hour,
		LockTTL:                 time.Minute,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StoreDriver = StorePostgres }, wantErr: "POSTGRES_DSN"},
		{name: "mongo without uri", mutate: func(c *Config) { c.StoreDriver = StoreMongo }, wantErr: "MONGO_URI"},
		{name: "mongo without db", mutate: func(c *Config) { c.StoreDriver = StoreMongo; c.MongoURI = "mongodb://localhost" }, wantErr: "MONGO_DB_NAME"},
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "cassandra" }, wantErr: "STORE_DRIVER"},
		{name: "http without url", mutate: func(c *Config) { c.ObjectStore = ObjectStoreHTTP }, wantErr: "DOCUMENT_SERVICE_URL"},
		{name: "filesystem without dir", mutate: func(c *Config) { c.NotebookDir = "" }, wantErr: "NOTEBOOK_DIR"},
		{name: "unknown object store", mutate: func(c *Config) { c.ObjectStore = "s3" }, wantErr: "OBJECT_STORE"},
		{name: "no check slots", mutate: func(c *Config) { c.MaxConcurrentChecks = 0 }, wantErr: "MAX_CONCURRENT_CHECKS"},
		{name: "no fetch slots", mutate: func(c *Config) { c.FetchConcurrency = 0 }, wantErr: "FETCH_CONCURRENCY"},
		{name: "threshold out of range", mutate: func(c *Config) { c.DefaultThreshold = 1.2 }, wantErr: "DEFAULT_THRESHOLD"},
		{name: "redis without lock ttl", mutate: func(c *Config) { c.RedisHost = "localhost:6379"; c.LockTTL = 0 }, wantErr: "LOCK_TTL_SECONDS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
