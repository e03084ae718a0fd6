// Package migrations holds the schema of the local state database: the
// credential and its cookie mirror, plus the offline list cache.
package migrations

import "embed"

// FS is applied in file name order by sqlite.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
