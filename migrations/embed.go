package migrations

import "embed"

// FS holds the SQL migrations for golang-migrate's iofs source.
//
//go:embed *.sql
var FS embed.FS
