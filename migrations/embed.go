// Package migrations holds the PostgreSQL schema shipped with the binaries.
package migrations

import "embed"

// Files contains every numbered up/down migration in this directory.
//
//go:embed *.sql
var Files embed.FS
