package migrations

import "embed"

// Embedded migration files bundled at compile time, one directory per
// supported database dialect.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
