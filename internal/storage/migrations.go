package storage

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the goose migration files applied at startup,
// rooted so the sql files sit at the top of the tree.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		// Unreachable: the embed directive guarantees the directory.
		panic(err)
	}
	return sub
}
