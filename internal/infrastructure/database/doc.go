// Package database provides SQLite connectivity for the controller.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Embedded schema migrations (see the top-level migrations package)
//   - Connection lifecycle and health checks
//
// The only table the controller owns is dispatch_log, which records the
// outcome of every actuator command sent by a behavioural module.
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
//
// All queries use parameterised statements and the database file is
// created with 0600 permissions.
package database
