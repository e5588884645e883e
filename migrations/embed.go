// Package migrations embeds the SQL schema migrations into the binary.
package migrations

import "embed"

// Files holds NNN_name.up.sql and NNN_name.down.sql migrations
//
//go:embed *.sql
var Files embed.FS
