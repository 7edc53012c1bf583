// Package database provides SQLite connectivity for the simulator's
// state-transition journal.
//
// This package manages:
//   - Database connection with WAL mode for concurrent writers
//   - Forward-only schema migrations loaded from an fs.FS
//
// The journal is write-only from the simulator's point of view: device
// state is never restored from it on start-up.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
