// Package schema embeds the goose migrations so the server binary can apply
// them at startup without a migrations directory on disk.
package schema

import "embed"

//go:embed *.sql
var FS embed.FS
