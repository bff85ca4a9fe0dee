// Package migrations embeds the SQLite schema into the binary and registers
// it with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/plaf203-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.RegisterMigrations(migrationsFS, ".")
}
