// Package database provides SQLite connectivity for the valve daemon.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations from an fs.FS (embedded by the migrations package)
//   - Connection pooling and lifecycle management
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are named YYYYMMDD_HHMMSS_description.up.sql with an optional
// matching .down.sql. They are additive: new columns must be nullable or
// carry a default.
package database
