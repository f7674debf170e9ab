// Package migrations embeds SQL migration files into the binary, so
// Hearth can migrate its database without shipping the SQL files
// alongside the executable.
package migrations

import (
	"embed"

	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
