package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	App struct {
		Port           string
		Debug          bool
		FrontendURL    string
		MaxUploadBytes int64
	}
	DB struct {
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
	}
	Redis struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	Inference struct {
		APIKey       string
		URL          string
		Model        string
		Referer      string
		Title        string
		Timeout      time.Duration
		RetryBackoff time.Duration
		MaxInFlight  int64
	}
	Auth struct {
		SessionTTL time.Duration
	}
	Dashboard struct {
		SnapshotCacheTTL time.Duration
	}
	Workers struct {
		RetentionEnabled   bool
		TelemetryRetention time.Duration
		RetentionInterval  time.Duration
	}
	RateLimit struct {
		RequestsPerSecond int
		Burst             int
	}
}

func Load() *Config {
	cfg := &Config{}

	// App
	cfg.App.Port = getEnv("PORT", "5000")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")
	cfg.App.MaxUploadBytes = int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20))

	// DB
	cfg.DB.Driver = getEnv("DB_DRIVER", "postgres")
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnv("DB_NAME", "fungi_project_db")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	// Redis
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// Inference
	cfg.Inference.APIKey = getEnv("OPENROUTER_API_KEY", "")
	cfg.Inference.URL = getEnv("INFERENCE_URL", "https://openrouter.ai/api/v1/chat/completions")
	cfg.Inference.Model = getEnv("INFERENCE_MODEL", "qwen/qwen2.5-vl-72b-instruct")
	cfg.Inference.Referer = getEnv("INFERENCE_REFERER", "http://localhost:5000")
	cfg.Inference.Title = getEnv("INFERENCE_TITLE", "FungiScan")
	cfg.Inference.Timeout = getEnvAsDuration("INFERENCE_TIMEOUT", 45*time.Second)
	cfg.Inference.RetryBackoff = getEnvAsDuration("INFERENCE_RETRY_BACKOFF", time.Second)
	cfg.Inference.MaxInFlight = int64(getEnvAsInt("MAX_CONCURRENT_ANALYSES", 8))

	// Auth
	cfg.Auth.SessionTTL = getEnvAsDuration("SESSION_TTL", 24*time.Hour)

	// Dashboard
	cfg.Dashboard.SnapshotCacheTTL = getEnvAsDuration("SNAPSHOT_CACHE_TTL", 3*time.Second)

	// Workers
	cfg.Workers.TelemetryRetention = getEnvAsDuration("TELEMETRY_RETENTION", 720*time.Hour)
	cfg.Workers.RetentionInterval = getEnvAsDuration("RETENTION_INTERVAL", time.Hour)
	cfg.Workers.RetentionEnabled = cfg.Workers.TelemetryRetention > 0

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = getEnvAsInt("RATE_LIMIT_RPS", 2)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 5)

	return cfg
}

// HTTPWriteTimeout covers two inference attempts plus the retry backoff.
func (c *Config) HTTPWriteTimeout() time.Duration {
	return 2*c.Inference.Timeout + c.Inference.RetryBackoff + 15*time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}
