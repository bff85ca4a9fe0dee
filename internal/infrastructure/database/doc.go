// Package database opens the feeder's SQLite store and applies schema
// migrations.
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional .down.sql partner. The migrations package embeds them and calls
// RegisterMigrations at init; tests register an fstest.MapFS instead.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
