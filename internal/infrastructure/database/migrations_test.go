package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func useMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	origFS, origDir := migrationSource, migrationDir
	RegisterMigrations(fsys, ".")
	t.Cleanup(func() { RegisterMigrations(origFS, origDir) })
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20261001_090000_plans.up.sql":      {Data: []byte("CREATE TABLE plans (id INTEGER PRIMARY KEY);")},
		"20261001_090000_plans.down.sql":    {Data: []byte("DROP TABLE plans;")},
		"20261002_090000_feed_log.up.sql":   {Data: []byte("CREATE TABLE feed_log (id INTEGER PRIMARY KEY);")},
		"20261002_090000_feed_log.down.sql": {Data: []byte("DROP TABLE feed_log;")},
		"README.md":                         {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations())
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"plans", "feed_log"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2/0", len(applied), len(pending))
	}
	if applied[0].Version != "20261001_090000" {
		t.Errorf("first applied = %s, want oldest first", applied[0].Version)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrations())
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "feed_log") {
		t.Error("feed_log should be dropped by MigrateDown")
	}
	if !tableExists(t, db, "plans") {
		t.Error("plans should survive a single MigrateDown")
	}

	_, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "feed_log" {
		t.Errorf("pending = %+v, want feed_log", pending)
	}
}

func TestMigrateDownNothingApplied(t *testing.T) {
	useMigrations(t, testMigrations())
	db := openTestDB(t)

	if err := db.MigrateDown(context.Background()); err != nil {
		t.Errorf("MigrateDown() on fresh database error = %v", err)
	}
}

func TestMigrateNoSource(t *testing.T) {
	origFS, origDir := migrationSource, migrationDir
	migrationSource = nil
	t.Cleanup(func() { RegisterMigrations(origFS, origDir) })

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() without migrations error = %v", err)
	}
}

func TestMigrateFailureRollsBack(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20261001_090000_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"20261002_090000_broken.up.sql": {Data: []byte("CREATE TABLE broken (id INTEGER); THIS IS NOT SQL;")},
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() should fail on broken SQL")
	}
	if !tableExists(t, db, "ok") {
		t.Error("earlier migration should stay committed")
	}

	applied, _, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d, want 1", len(applied))
	}
}

func TestLoadMigrationsOrphanDown(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20261001_090000_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	})
	if _, err := loadMigrations(); err == nil {
		t.Error("loadMigrations() should reject a down file without an up file")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in     string
		want   migrationFile
		wantOK bool
	}{
		{"20261018_120000_food_plans.up.sql", migrationFile{"20261018_120000", "food_plans", true}, true},
		{"20261018_120000_feed_log.down.sql", migrationFile{"20261018_120000", "feed_log", false}, true},
		{"20261018_120000.up.sql", migrationFile{"20261018_120000", "", true}, true},
		{"20261018_120000_food_plans.sql", migrationFile{}, false},
		{"20261018.up.sql", migrationFile{}, false},
		{"notes.txt", migrationFile{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseMigrationFilename(tt.in)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("parseMigrationFilename(%q) = (%+v, %v), want (%+v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
