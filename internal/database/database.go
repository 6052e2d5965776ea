package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gracechapel/backend/internal/models"
	"github.com/gracechapel/backend/internal/telemetry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection
func Initialize() error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// Fallback to individual components
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "postgres")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "gracechapel")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	// Configure GORM logger
	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if os.Getenv("TRACING_ENABLED") == "true" {
		if err := db.Use(telemetry.GORMTracingPlugin()); err != nil {
			log.Printf("Warning: failed to register DB tracing plugin: %v", err)
		}
	}

	DB = db
	log.Println("✅ Database connected successfully")

	return nil
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	err := DB.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.CommunityPost{},
		&models.Member{},
		&models.Position{},
		&models.Event{},
		&models.Doctrine{},
		&models.SiteSetting{},
		&models.ViewEvent{},
		&models.PostLike{},
		&models.EngagementSession{},
		&models.PostStats{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	err = createIndexes()
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("✅ Database migrations completed")
	return nil
}

// createIndexes creates performance indexes beyond what AutoMigrate emits.
// The unique indexes back the one-like-per-user and one-session-row
// invariants; duplicate inserts that race past the application checks
// fail here.
func createIndexes() error {
	// User lookups
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))")

	// Content listing
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_posts_published_at ON posts (published, published_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_community_posts_status_created ON community_posts (status, created_at DESC)")

	// View events: per-content scans for stats recomputation
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_view_events_content_created ON view_events (content_type, content_id, created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_view_events_content_session ON view_events (content_type, content_id, session_id)")

	// Like ledger uniqueness
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_post_likes_unique ON post_likes (content_type, content_id, user_id)")

	// One engagement row per (content, session)
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_engagement_sessions_unique ON engagement_sessions (content_type, content_id, session_id)")

	// One snapshot row per content item
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_post_stats_unique ON post_stats (content_type, content_id)")

	// Upcoming-events listing
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_events_starts_at ON events (starts_at)")

	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
