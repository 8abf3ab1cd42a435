// Package migrations bundles the schema migrations for each supported
// database into the binary.
package migrations

import "embed"

// SqliteMigrations holds migrations for the sqlite3 driver.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

// PostgresMigrations holds migrations for the postgres driver.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
