package migrations

import "embed"

// FS contains the embedded SQLite migrations of the meal store.
//
//go:embed *.sql
var FS embed.FS
