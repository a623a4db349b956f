// Package migrations holds the embedded schema migrations for typec.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
