package sqlitemigrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestApplyMigrationsCreatesSchemaAndRecords(t *testing.T) {
	db := openMemoryDB(t)

	source := fstest.MapFS{
		"0001_accounts.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE accounts(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE accounts;"),
		},
	}
	if err := ApplyMigrations(context.Background(), db, source, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("expected 1 recorded migration, got %d", got)
	}
	if !tableExists(t, db, "accounts") {
		t.Fatal("expected accounts table after migration")
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := openMemoryDB(t)

	source := fstest.MapFS{
		"0001_accounts.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE accounts(id TEXT PRIMARY KEY);"),
		},
	}
	for i := 0; i < 2; i++ {
		if err := ApplyMigrations(context.Background(), db, source, ""); err != nil {
			t.Fatalf("apply pass %d: %v", i+1, err)
		}
	}

	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("expected single recorded migration after replay, got %d", got)
	}
}

func TestApplyMigrationsLeavesFailureUnrecorded(t *testing.T) {
	db := openMemoryDB(t)

	broken := fstest.MapFS{
		"0001_accounts.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREAT table accounts(id INT);"),
		},
	}
	if err := ApplyMigrations(context.Background(), db, broken, ""); err == nil {
		t.Fatal("expected broken migration to fail")
	}
	if got := countRows(t, db, "schema_migrations"); got != 0 {
		t.Fatalf("expected failed migration to stay unrecorded, got %d rows", got)
	}

	fixed := fstest.MapFS{
		"0001_accounts.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE accounts(id TEXT PRIMARY KEY);"),
		},
	}
	if err := ApplyMigrations(context.Background(), db, fixed, ""); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("expected fixed migration recorded, got %d rows", got)
	}
}

func TestApplyMigrationsKeysIncludeDirectory(t *testing.T) {
	db := openMemoryDB(t)

	source := fstest.MapFS{
		"auth/0001_accounts.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE accounts(id TEXT PRIMARY KEY);"),
		},
	}
	if err := ApplyMigrations(context.Background(), db, source, "auth"); err != nil {
		t.Fatalf("apply migrations with dir: %v", err)
	}

	var key string
	if err := db.QueryRow("SELECT name FROM schema_migrations LIMIT 1").Scan(&key); err != nil {
		t.Fatalf("read migration key: %v", err)
	}
	if key != "auth/0001_accounts.sql" {
		t.Fatalf("expected directory-qualified key, got %q", key)
	}
}

func TestApplyMigrationsToleratesExistingDDL(t *testing.T) {
	db := openMemoryDB(t)

	if _, err := db.Exec("CREATE TABLE accounts(id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("pre-create table: %v", err)
	}

	source := fstest.MapFS{
		"0001_accounts.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE accounts(id TEXT PRIMARY KEY);"),
		},
	}
	if err := ApplyMigrations(context.Background(), db, source, ""); err != nil {
		t.Fatalf("expected existing DDL to be tolerated: %v", err)
	}
	if got := countRows(t, db, "schema_migrations"); got != 1 {
		t.Fatalf("expected migration recorded despite existing table, got %d", got)
	}
}

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&value); err != nil {
		t.Fatalf("count rows in %s: %v", table, err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return false
		}
		t.Fatalf("check table exists: %v", err)
	}
	return name == table
}
