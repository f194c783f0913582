// Package sqlitemigrate applies embedded SQL migration files in lexical
// order, recording each one so replays are no-ops.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const versionTable = "schema_migrations"

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// migration pairs the recorded key with the file's location in the source
// filesystem. The key keeps the directory prefix so two bundles sharing a
// database cannot collide on bare file names.
type migration struct {
	key  string
	path string
}

// ApplyMigrations runs every pending .sql file under dir against db. Each
// file executes inside its own transaction and is recorded only on success,
// so a failed migration is retried on the next start.
func ApplyMigrations(ctx context.Context, db *sql.DB, source fs.FS, dir string) error {
	if db == nil {
		return fmt.Errorf("sql db is required")
	}

	pending, err := listMigrations(source, dir)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`, versionTable)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, m := range pending {
		done, err := isApplied(ctx, db, m.key)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.key, err)
		}
		if done {
			continue
		}

		content, err := fs.ReadFile(source, m.path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m.key, err)
		}
		statements := upSection(string(content))
		if strings.TrimSpace(statements) == "" {
			continue
		}

		if err := applyOne(ctx, db, m.key, statements); err != nil {
			return err
		}
	}

	return nil
}

func listMigrations(source fs.FS, dir string) ([]migration, error) {
	root := strings.TrimSpace(dir)
	if root == "" {
		root = "."
	}

	entries, err := fs.ReadDir(source, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var found []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		key := entry.Name()
		if root != "." {
			key = path.Join(root, entry.Name())
		}
		found = append(found, migration{key: key, path: key})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].key < found[j].key })
	return found, nil
}

func applyOne(ctx context.Context, db *sql.DB, key, statements string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", key, err)
	}

	if _, err := tx.Exec(statements); err != nil {
		// DDL that already took effect in a previous partial run is fine.
		if !isBenignDDLError(err) {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", key, err)
		}
	}

	if _, err := tx.Exec(
		fmt.Sprintf("INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)", versionTable),
		key,
		time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", key, err)
	}
	return nil
}

// upSection returns the SQL between the Up and Down markers. Files without
// markers run whole.
func upSection(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(body, downMarker); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}

func isBenignDDLError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

func isApplied(ctx context.Context, db *sql.DB, key string) (bool, error) {
	var found int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM "+versionTable+" WHERE name = ?", key).Scan(&found)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
