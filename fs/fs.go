package appfs

import "embed"

// FS holds the database migrations.
//
//go:embed migrations
var FS embed.FS

const MigrationsDir = "migrations"
