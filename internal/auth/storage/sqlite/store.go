// Package sqlite implements auth persistence over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gatehouse-auth/gatehouse/internal/auth/storage"
	"github.com/gatehouse-auth/gatehouse/internal/auth/storage/sqlite/migrations"
	apperrors "github.com/gatehouse-auth/gatehouse/internal/platform/errors"
	sqlitemigrate "github.com/gatehouse-auth/gatehouse/internal/platform/storage/sqlitemigrate"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements auth persistence over SQLite.
//
// A single SQLite file backs accounts, credentials, and challenges so the
// delete-last-credential rule can run inside one transaction.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the SQLite store and applies bundled migrations.
//
// This keeps startup and schema evolution in one place, instead of requiring
// callers to coordinate migrations independently.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}

	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// isUniqueViolation detects SQLite unique constraint failures.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storeFailure classifies a driver error as transient storage
// unavailability. Not-found and constraint outcomes are mapped to their
// own errors before this applies.
func storeFailure(message string, err error) error {
	return apperrors.Wrap(apperrors.CodeStoreUnavailable, message, err)
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CredentialStore = (*Store)(nil)
var _ storage.ChallengeStore = (*Store)(nil)
