package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxUploadSize)
	assert.Equal(t, 2*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.StatsCacheTTL)
	assert.Equal(t, "Asia/Shanghai", cfg.TimeZone)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.IsTest())
	assert.False(t, cfg.IsProduction())
	assert.Same(t, cfg, GetConfig())
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STATS_CACHE_TTL", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://oa.example.com, https://admin.example.com")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.StatsCacheTTL)
	assert.Equal(t, []string{"https://oa.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.MinIOUseSSL)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			GoEnv:           "test",
			DatabaseDriver:  "sqlite",
			DatabaseURL:     "file::memory:",
			JWTSecret:       "secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: time.Hour,
			StorageBackend:  "local",
			UploadDir:       "./uploads",
			TimeZone:        "Asia/Shanghai",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, "DATABASE_DRIVER"},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"short production secret", func(c *Config) { c.GoEnv = "production" }, "at least 32"},
		{"s3 without bucket", func(c *Config) { c.StorageBackend = "s3" }, "AWS_S3_BUCKET"},
		{"minio without endpoint", func(c *Config) { c.StorageBackend = "minio"; c.MinIOBucket = "b" }, "MINIO_ENDPOINT"},
		{"unknown backend", func(c *Config) { c.StorageBackend = "ftp" }, "STORAGE_BACKEND"},
		{"bad time zone", func(c *Config) { c.TimeZone = "Mars/Olympus" }, "TIME_ZONE"},
		{"zero ttl", func(c *Config) { c.AccessTokenTTL = 0 }, "token lifetimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{TimeZone: "Asia/Shanghai"}
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, cfg.Location()).Zone()
	assert.Equal(t, 8*60*60, offset)

	cfg.TimeZone = "nowhere"
	_, offset = time.Date(2026, 1, 1, 0, 0, 0, 0, cfg.Location()).Zone()
	assert.Equal(t, 8*60*60, offset, "unknown zones fall back to UTC+8")
}

func TestInitLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := InitLogger("debug", format)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}
