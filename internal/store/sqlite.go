package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"
)

// openSQLite opens (or creates) the SQLite database at the given path with
// the modernc driver and applies the connection PRAGMAs. gorm is layered on
// top of the returned handle. gorm.io/driver/sqlite still links
// mattn/go-sqlite3, whose driver is never opened here; CGO_ENABLED=0 builds
// get its stub.
func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// Timestamps are written in a sortable text layout so that range
	// predicates like scheduled_for <= ? compare correctly.
	db, err := sql.Open("sqlite", path+"?_time_format=sqlite")
	if err != nil {
		return nil, err
	}

	// One connection serializes every transaction, so a poll pass holds off
	// the update path and /readyz until it commits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return db, nil
}

func newSQLiteDialector(conn *sql.DB) gorm.Dialector {
	return &gormsqlite.Dialector{Conn: conn}
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
