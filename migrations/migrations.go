// Package migrations embeds the schema migration files so the server and the
// integration tests can apply them without depending on the working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
