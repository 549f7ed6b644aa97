package database

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// MigrationsFS holds the embedded goose migration files.
// It is set by the migrations package:
//
//	//go:embed *.sql
//	var migrationsFS embed.FS
//
//	func init() {
//	    database.MigrationsFS = migrationsFS
//	}
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS containing migration files.
var MigrationsDir = "."

// Migrate applies all pending migrations in version order.
//
// Each goose migration runs in its own transaction, so a failure leaves
// earlier migrations committed and re-running Migrate continues from the
// failed one.
func (db *DB) Migrate(ctx context.Context) error {
	if MigrationsFS == nil {
		return nil
	}

	if err := configureGoose(); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db.DB, MigrationsDir); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// migrateDown rolls back the most recent migration.
func (db *DB) migrateDown(ctx context.Context) error {
	if MigrationsFS == nil {
		return nil
	}

	if err := configureGoose(); err != nil {
		return err
	}

	if err := goose.DownContext(ctx, db.DB, MigrationsDir); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	return nil
}

// Version returns the currently applied schema version (0 when none).
func (db *DB) Version(ctx context.Context) (int64, error) {
	if err := configureGoose(); err != nil {
		return 0, err
	}

	v, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// configureGoose points goose at the embedded files. goose keeps this as
// package state, so it is re-applied on every call.
func configureGoose() error {
	goose.SetBaseFS(MigrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return nil
}
