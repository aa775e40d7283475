// Package migrations embeds the SQL schema migrations into the binary
// and registers them with the database package.
//
// Import for side effects:
//
//	import _ "github.com/niconistal/BabyBox/migrations"
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql for rollback.
package migrations

import (
	"embed"

	"github.com/niconistal/BabyBox/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
