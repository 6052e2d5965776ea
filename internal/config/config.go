package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the runtime configuration, loaded from environment variables.
// main calls godotenv.Load() before Load() so a local .env works in dev.
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFile     string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret string

	OTLPEndpoint    string
	TracingEnabled  bool
	TraceSampleRate float64

	CORSOrigins string

	Engagement EngagementConfig
}

// EngagementConfig carries the view-tracking tunables
type EngagementConfig struct {
	DedupTTL       time.Duration // same session+content within this window counts once
	RateLimit      int           // counted views per IP per content per window
	RateWindow     time.Duration
	StatsCacheTTL  time.Duration // redis snapshot cache
	SnapshotMaxAge time.Duration // recompute when the stored snapshot is older
	DriftTolerance int64         // recompute when total_views drifts past this
}

// Load reads configuration from the environment with sensible defaults
func Load() *Config {
	return &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:     getEnvOrDefault("LOG_FILE", "server.log"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:      getEnvOrDefault("DB_PORT", "5432"),
		DBUser:      getEnvOrDefault("DB_USER", "postgres"),
		DBPassword:  getEnvOrDefault("DB_PASSWORD", ""),
		DBName:      getEnvOrDefault("DB_NAME", "gracechapel"),

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: getEnvOrDefault("JWT_SECRET", "dev-secret-change-me"),

		OTLPEndpoint:    getEnvOrDefault("OTLP_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getEnvOrDefault("TRACING_ENABLED", "false") == "true",
		TraceSampleRate: getEnvFloat("TRACE_SAMPLE_RATE", 0.1),

		CORSOrigins: getEnvOrDefault("CORS_ORIGINS", "http://localhost:3000"),

		Engagement: EngagementConfig{
			DedupTTL:       getEnvDuration("VIEW_DEDUP_TTL", 30*time.Minute),
			RateLimit:      getEnvInt("VIEW_RATE_LIMIT", 10),
			RateWindow:     getEnvDuration("VIEW_RATE_WINDOW", time.Hour),
			StatsCacheTTL:  getEnvDuration("STATS_CACHE_TTL", 60*time.Second),
			SnapshotMaxAge: getEnvDuration("STATS_SNAPSHOT_MAX_AGE", 5*time.Minute),
			DriftTolerance: int64(getEnvInt("STATS_DRIFT_TOLERANCE", 5)),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
