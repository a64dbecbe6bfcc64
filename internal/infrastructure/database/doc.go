// Package database provides SQLite connectivity for the HTTP front door.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Forward-only schema migrations from an fs.FS
//   - Connection lifecycle and health checks
//
// The front door stores its persistent IP bans here.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
