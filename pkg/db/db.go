package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/facility_triage/internal/models"
)

var gormDB *gorm.DB

// sqliteParams makes every transaction take the write lock up front and wait
// for it instead of failing fast, so concurrent writers queue on the
// uniqueness check rather than erroring with SQLITE_BUSY.
const sqliteParams = "_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL&_foreign_keys=on"

// Options tunes Open.
type Options struct {
	LogLevel logger.LogLevel
}

// Open connects to driver ("sqlite" or "postgres") at source. For sqlite the
// parent directory is created when missing.
func Open(driver, source string, opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		if err := ensureDir(source); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(sqliteDSN(source))
	case "postgres":
		dialector = postgres.Open(source)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}

	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger,
		TranslateError: true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return gdb, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.Complaint{},
		&models.SlotReservation{},
		&models.ComplaintStatusHistory{},
	)
}

// InitDB opens the process-wide connection and migrates it. It exits the
// process on failure, like the rest of startup.
func InitDB(driver, source string) {
	var err error
	gormDB, err = Open(driver, source, Options{LogLevel: logger.Info})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Successfully connected to %s database using GORM.", driver)

	if err := Migrate(gormDB); err != nil {
		log.Fatalf("Failed to auto migrate database tables: %v", err)
	}
	log.Println("Database tables migrated successfully.")
}

// GetDB returns the process-wide instance.
func GetDB() *gorm.DB {
	if gormDB == nil {
		log.Fatal("Database not initialized. Call InitDB first.")
	}
	return gormDB
}

// CloseDB closes the process-wide connection (usually on exit).
func CloseDB() {
	if gormDB != nil {
		sqlDB, err := gormDB.DB()
		if err != nil {
			log.Printf("Error getting underlying sql.DB for closing: %v", err)
			return
		}
		if err := sqlDB.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
		log.Println("Database connection closed.")
	}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	if strings.HasPrefix(path, "file:") {
		return path + "?" + sqliteParams
	}
	return "file:" + path + "?" + sqliteParams
}

func ensureDir(path string) error {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Printf("Database directory %s does not exist, creating it...", dir)
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return fmt.Errorf("db: create directory %s: %w", dir, mkErr)
		}
	}
	return nil
}
