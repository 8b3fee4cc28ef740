// Package database provides SQLite connectivity for the farm bridge.
//
// This package manages:
//   - Opening the database with foreign keys, busy timeout and optional WAL
//   - Applying embedded schema migrations
//   - Transaction helpers for multi-table changes
//
// All queries in the repository packages use parameterised statements.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
package database
