// Package migrations embeds the domain schema (users, stocks) into the binary.
//
// Each dialect family has its own directory of NNN_table.sql files; the
// database package picks the directory matching the connected backend.
package migrations

import (
	"embed"

	"github.com/nerrad567/stockapi-core/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var schemaFS embed.FS

// Schema returns the domain schema for use with Manager.Migrate.
func Schema() *database.Schema {
	return database.NewSchema(schemaFS)
}
