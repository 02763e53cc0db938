package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	GoEnv string
	Port  string

	DatabaseDriver string
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	StorageBackend string
	UploadDir      string
	MaxUploadSize  int64

	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSS3Endpoint      string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StatsCacheTTL time.Duration

	TimeZone           string
	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string

	AdminUsername string
	AdminPassword string
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			// In production environment variables are set directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	v := newViper()

	config := &Config{
		GoEnv: v.GetString("GO_ENV"),
		Port:  v.GetString("PORT"),

		DatabaseDriver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		JWTSecret:       v.GetString("JWT_SECRET"),
		JWTIssuer:       v.GetString("JWT_ISSUER"),
		JWTAudience:     v.GetString("JWT_AUDIENCE"),
		AccessTokenTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL: v.GetDuration("REFRESH_TOKEN_TTL"),

		StorageBackend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
		UploadDir:      v.GetString("UPLOAD_DIR"),
		MaxUploadSize:  v.GetInt64("MAX_UPLOAD_SIZE"),

		AWSRegion:          v.GetString("AWS_REGION"),
		AWSS3Bucket:        v.GetString("AWS_S3_BUCKET"),
		AWSAccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		AWSS3Endpoint:      v.GetString("AWS_S3_ENDPOINT"),

		MinIOEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinIOAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinIOSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinIOBucket:    v.GetString("MINIO_BUCKET"),
		MinIOUseSSL:    v.GetBool("MINIO_USE_SSL"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		StatsCacheTTL: v.GetDuration("STATS_CACHE_TTL"),

		TimeZone:           v.GetString("TIME_ZONE"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		AdminUsername: v.GetString("ADMIN_USERNAME"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("GO_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("JWT_ISSUER", "firedoor-oa")
	v.SetDefault("JWT_AUDIENCE", "firedoor-oa-api")
	v.SetDefault("ACCESS_TOKEN_TTL", "2h")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("MAX_UPLOAD_SIZE", 50*1024*1024)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STATS_CACHE_TTL", "5m")
	v.SetDefault("TIME_ZONE", "Asia/Shanghai")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	return v
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}

	switch c.StorageBackend {
	case "local":
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required for local storage")
		}
	case "s3":
		if c.AWSS3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required for s3 storage")
		}
	case "minio":
		if c.MinIOEndpoint == "" || c.MinIOBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required for minio storage")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be local, s3 or minio, got %q", c.StorageBackend)
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// Location returns the business time zone. Order numbers use its calendar month.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// GetConfig returns the configuration loaded by Load
func GetConfig() *Config {
	return appConfig
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(cfg *Config) {
	appConfig = cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
