package migrations

import "embed"

// FS contains embedded SQLite migrations for session recordings.
//
//go:embed *.sql
var FS embed.FS
