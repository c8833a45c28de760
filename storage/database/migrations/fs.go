package migrations

import "embed"

// FS holds the goose SQL migrations of the application database.
//
//go:embed *.sql
var FS embed.FS
