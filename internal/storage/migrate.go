package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// The ledger schema ships embedded with the binary; both the API server
// and the mirror worker bring the database up to date on startup, so a
// fresh deployment needs no separate migration step.
//
//go:embed migrations/*.sql
var ledgerSchema embed.FS

// runMigrations applies any pending ledger migrations. It opens its own
// connection: golang-migrate takes ownership of the *sql.DB it wraps, and
// the repository's connection must outlive the migrate instance.
func runMigrations(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	src, err := iofs.New(ledgerSchema, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("wrap sqlite connection: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply ledger migrations: %w", err)
	}

	return nil
}
