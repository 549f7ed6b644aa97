// Package database provides SQLite connectivity for Amarati Core.
//
// This package manages:
//   - The connection, opened with WAL mode and foreign keys enforced
//   - Schema migrations via goose, from SQL files embedded in the binary
//   - Health checks and transaction helpers
//
// The pool is pinned to a single connection. SQLite allows one writer at a
// time, and a single connection turns every transaction into a critical
// section across concurrent requests.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
