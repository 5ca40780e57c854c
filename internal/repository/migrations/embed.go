package migrations

import "embed"

// FS contains the ordered Postgres schema migrations.
//
//go:embed *.sql
var FS embed.FS
