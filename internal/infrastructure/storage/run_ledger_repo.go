// Package storage provides SQLite-based storage implementations for state management.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/jbctechsolutions/rasco/internal/application/ports"
)

// Compile-time check that RunLedgerRepository implements RunLedgerPort.
var _ ports.RunLedgerPort = (*RunLedgerRepository)(nil)

// RunLedgerRepository implements RunLedgerPort using SQLite, grounded on the
// teacher's workflow checkpoint repository: a single-connection *sql.DB
// opened against an on-disk file, with a small versioned migration applied
// on open.
type RunLedgerRepository struct {
	db *sql.DB
}

// OpenRunLedger opens (creating if necessary) the SQLite-backed run ledger
// at dbPath and applies its schema migration.
func OpenRunLedger(dbPath string) (*RunLedgerRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("could not create run ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not open run ledger: %w", err)
	}

	// SQLite works best with a single connection; the driver serializes
	// concurrent worker writes onto it rather than racing file locks.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ping run ledger: %w", err)
	}

	if err := applyRunLedgerMigration(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate run ledger: %w", err)
	}

	return &RunLedgerRepository{db: db}, nil
}

// NewRunLedgerRepository wraps an already-open *sql.DB, applying the schema
// migration to it.
// Exposed for tests that want an in-memory ledger.
func NewRunLedgerRepository(db *sql.DB) (*RunLedgerRepository, error) {
	if err := applyRunLedgerMigration(db); err != nil {
		return nil, fmt.Errorf("could not migrate run ledger: %w", err)
	}
	return &RunLedgerRepository{db: db}, nil
}

func applyRunLedgerMigration(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS completed_runs (
			taskset_path TEXT NOT NULL,
			util         REAL NOT NULL,
			taskset_idx  INTEGER NOT NULL,
			algo         INTEGER NOT NULL,
			completed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (taskset_path, util, taskset_idx, algo)
		)
	`)
	return err
}

// IsComplete reports whether key was already recorded as finished.
func (r *RunLedgerRepository) IsComplete(ctx context.Context, key ports.RunKey) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM completed_runs
		WHERE taskset_path = ? AND util = ? AND taskset_idx = ? AND algo = ?
	`, key.TasksetPath, key.Util, key.Idx, key.Algo)

	var found int
	err := row.Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not query run ledger: %w", err)
	}
	return true, nil
}

// MarkComplete records key as finished; repeated calls for the same key are
// idempotent.
func (r *RunLedgerRepository) MarkComplete(ctx context.Context, key ports.RunKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO completed_runs (taskset_path, util, taskset_idx, algo)
		VALUES (?, ?, ?, ?)
	`, key.TasksetPath, key.Util, key.Idx, key.Algo)
	if err != nil {
		return fmt.Errorf("could not record completed run: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *RunLedgerRepository) Close() error {
	return r.db.Close()
}
