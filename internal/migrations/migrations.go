// Package migrations embeds the postgres schema for golang-migrate
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

// Dir is the path of the migration files inside FS
const Dir = "sql"
