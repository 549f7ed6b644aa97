// Package migrations embeds the goose SQL migrations into the binary.
package migrations

import (
	"embed"

	"github.com/amarati/amarati-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
