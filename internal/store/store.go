// Package store provides SQLite-backed persistence for users, messages, and
// block relationships. The database is opened through GORM with a pure-Go
// driver and auto-migrated on startup.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrBlockExists is returned when a block record for the same
// (blocker, blocked) pair already exists.
var ErrBlockExists = errors.New("store: block already exists")

// Store wraps the database handle and exposes the persistence operations
// used by the delivery engine and the HTTP handlers.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the SQLite database at path and runs
// migrations. A busy timeout keeps concurrent handler writes from failing
// immediately on lock contention.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	if err := db.AutoMigrate(&User{}, &Message{}, &BlockedUser{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func nowUTC() time.Time { return time.Now().UTC() }
