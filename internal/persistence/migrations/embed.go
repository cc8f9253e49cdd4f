// Package migrations embeds the versioned schema for the persistence
// client's own bookkeeping tables (spec section 4.L).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
