package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	Version     string
	DatabaseURL string
	RedisURL    string

	// Object storage (S3/R2 compatible). When the endpoint or access key
	// is empty the service falls back to local filesystem storage.
	StorageEndpointURL     string
	StorageAccessKeyID     string
	StorageSecretAccessKey string
	StorageBucketName      string
	StorageRegion          string
	StoragePath            string

	// External inference service.
	ModelBaseURL string
	ModelAPIKey  string
	ModelName    string

	FrontendURL string
	GeoIPDBPath string

	RetentionWindow   time.Duration
	PresignTTL        time.Duration
	EstimatedWait     int
	RateLimitPerMin   int
	WorkerConcurrency int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		StorageEndpointURL:     os.Getenv("STORAGE_ENDPOINT_URL"),
		StorageAccessKeyID:     os.Getenv("STORAGE_ACCESS_KEY_ID"),
		StorageSecretAccessKey: os.Getenv("STORAGE_SECRET_ACCESS_KEY"),
		StorageBucketName:      os.Getenv("STORAGE_BUCKET_NAME"),
		StorageRegion:          getEnv("STORAGE_REGION", "auto"),
		StoragePath:            getEnv("STORAGE_PATH", "./storage"),

		ModelBaseURL: os.Getenv("MODEL_BASE_URL"),
		ModelAPIKey:  os.Getenv("MODEL_API_KEY"),
		ModelName:    getEnv("MODEL_NAME", "musicgen-large"),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		RetentionWindow:   time.Hour * time.Duration(getEnvInt("RETENTION_HOURS", 24)),
		PresignTTL:        time.Second * time.Duration(getEnvInt("PRESIGN_TTL_SECONDS", 3600)),
		EstimatedWait:     getEnvInt("ESTIMATED_WAIT_SECONDS", 30),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 5),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 1),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// ObjectStorageEnabled reports whether S3-compatible storage is configured.
func (c *Config) ObjectStorageEnabled() bool {
	return c.StorageEndpointURL != "" && c.StorageAccessKeyID != "" && c.StorageBucketName != ""
}

// AllowedOrigins splits FRONTEND_URL into the CORS allow-list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.FrontendURL, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
