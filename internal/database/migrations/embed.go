// Package migrations embeds the schema for each supported SQL dialect.
package migrations

import "embed"

// FS holds one directory of *.sql files per dialect (mysql, sqlite).
//
//go:embed mysql/*.sql sqlite/*.sql
var FS embed.FS
