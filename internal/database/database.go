// Package database opens the credential database and migrates the
// per-guard tables.
package database

import (
	"database/sql"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/gatekeeper/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the SQLite database at dbPath and migrates the given
// credential tables. Every table shares the user model schema; each
// configured guard reads its own table.
func NewDatabase(dbPath string, tables []string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, table := range tables {
		if err := db.Table(table).AutoMigrate(&entities.User{}); err != nil {
			return nil, fmt.Errorf("failed to migrate table %q: %w", table, err)
		}
	}

	return &Database{DB: db}, nil
}

// SQLDB exposes the underlying *sql.DB, used by the session store.
func (d *Database) SQLDB() (*sql.DB, error) {
	return d.DB.DB()
}
