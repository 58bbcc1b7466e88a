package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/drgyl/books/pkg/models"
)

// Open connects to the library database selected by DB_DIALECT and ensures
// the schema exists. The default is an embedded SQLite file at DB_PATH.
func Open() (*gorm.DB, error) {
	dialect := getEnv("DB_DIALECT", "sqlite")

	switch dialect {
	case "sqlite":
		path := getEnv("DB_PATH", "library.db")
		log.Printf("Opening library database: %s", path)
		return OpenSQLite(path)
	case "postgres":
		host := getEnv("DB_HOST", "postgres")
		port := getEnv("DB_PORT", "5432")
		user := getEnv("DB_USER", "program")
		password := getEnv("DB_PASSWORD", "test")
		dbname := getEnv("DB_NAME", "library")

		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			host, user, password, dbname, port)

		log.Printf("Connecting to library database: host=%s, port=%s", host, port)
		return open(postgres.Open(dsn))
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", dialect)
	}
}

// OpenSQLite opens the single-file store at path. Foreign key enforcement is
// enabled per connection through the DSN.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=5000", path)
	return open(sqlite.Open(dsn))
}

func open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	// Idempotent: creates the three tables and the borrow_records indexes
	// on first run, no-ops afterwards.
	err = db.AutoMigrate(&models.Book{}, &models.Borrower{}, &models.BorrowRecord{})
	if err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return db, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
