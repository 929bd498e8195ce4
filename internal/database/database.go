package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/clapserv/backend/internal/models"
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
		dbname := getEnvOrDefault("DB_NAME", "clapserv")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

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

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	log.Println("Database connected successfully")

	return nil
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// Enable UUID extension for PostgreSQL
	err := DB.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
	if err != nil {
		log.Printf("Warning: Could not create uuid-ossp extension: %v", err)
	}

	err = DB.AutoMigrate(
		&models.User{},
		&models.ProviderProfile{},
		&models.PushToken{},
		&models.PasswordReset{},
		&models.ServiceCategory{},
		&models.ServiceRegion{},
		&models.RegionCategory{},
		&models.ServiceRequest{},
		&models.Proposal{},
		&models.Project{},
		&models.Review{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// createIndexes creates performance indexes and composite uniqueness
// constraints AutoMigrate cannot express
func createIndexes() error {
	// User lookups are case-insensitive
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))")

	// Provider matching scans skills by category ID
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_provider_profiles_skills ON provider_profiles USING GIN (skills)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_provider_profiles_active ON provider_profiles (is_active) WHERE is_active = true")

	// Region gazetteer lookups by city/zip
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_service_regions_city_lower ON service_regions (LOWER(city))")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_service_regions_zip ON service_regions (zip)")
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_region_categories_unique ON region_categories (region_id, category_id)")

	// Request feeds
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_service_requests_buyer_created ON service_requests (buyer_id, created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_service_requests_category_status ON service_requests (category_id, status)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_service_requests_open_created ON service_requests (status, created_at DESC) WHERE status = 'open'")

	// One proposal per provider per request
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_proposals_unique ON proposals (request_id, provider_id) WHERE deleted_at IS NULL")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_proposals_provider_created ON proposals (provider_id, created_at DESC)")

	// Project listings per participant
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_projects_buyer ON projects (buyer_id, created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_projects_provider ON projects (provider_id, created_at DESC)")

	// Conversation listing and message pagination
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_unique_project ON conversations (buyer_id, provider_id, project_id) WHERE project_id IS NOT NULL AND deleted_at IS NULL")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_conversations_last_message ON conversations (last_message_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages (conversation_id, created_at DESC)")

	// Notification badge queries
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created ON notifications (recipient_id, created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_notifications_recipient_unread ON notifications (recipient_id) WHERE read = false")

	// Push token lookups per user
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_push_tokens_user ON push_tokens (user_id)")

	// Review lookups per provider
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_reviews_provider_created ON reviews (provider_id, created_at DESC)")

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
