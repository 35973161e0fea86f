// Package migrations embeds the goose migrations for each supported
// database.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Directories inside FS.
const (
	SQLiteDir   = "sqlite"
	PostgresDir = "postgres"
)
