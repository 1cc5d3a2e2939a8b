package migrations

import "embed"

// FS holds the SQL migrations applied by goose.
//
//go:embed *.sql
var FS embed.FS
