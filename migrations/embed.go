package migrations

import "embed"

// Files holds the session store schema migrations applied at startup.
//
//go:embed *.sql
var Files embed.FS
