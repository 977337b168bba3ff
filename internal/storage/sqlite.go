package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultDBFile is used when no path is configured.
const DefaultDBFile = "sonique.db"

// DB is the shared durable-store handle. The index and the catalog both
// persist through it; neither owns the connection.
type DB struct {
	Gorm *gorm.DB
	sql  *sql.DB
}

// DefaultPath resolves the database location from SONIQUE_DB_PATH, falling
// back to DefaultDBFile in the working directory.
func DefaultPath() string {
	if p := os.Getenv("SONIQUE_DB_PATH"); p != "" {
		return p
	}
	return DefaultDBFile
}

// Open opens (creating if necessary) the SQLite database at dbPath.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{Gorm: db, sql: sqlDB}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}
