// Package migrations embeds the remote PostgreSQL schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
