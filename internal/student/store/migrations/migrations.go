package migrations

import "embed"

// Migrations holds the goose SQL migrations for the students table.
//
//go:embed *.sql
var Migrations embed.FS
