// Package catalog is the embedded relational store for agents, runs,
// sandbox profiles/rules, violations, and app settings (spec §4.1).
package catalog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Catalog wraps the single embedded SQL database opened at application
// start. On open failure the process is expected to abort startup (spec
// §4.1); Open only returns the error for the caller to act on.
type Catalog struct {
	db *sql.DB
}

// Open creates the catalog directory if needed and opens the SQLite
// database in WAL mode, mirroring the teacher's memory.NewMemoryDB pooling
// and pragma choices.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	if _, err := c.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// withTx runs fn inside a single transaction, rolling back on any error.
// Every multi-row update (profile deletion cascading rules/violations, the
// exactly-one-default invariant) goes through this helper (spec §4.1).
func (c *Catalog) withTx(fn func(*sql.Tx) error) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
