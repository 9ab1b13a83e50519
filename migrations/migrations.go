// Package migrations embeds the goose-format SQL migrations applied by
// internal/migrate on startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
