// Package migrations bundles the SQL schema for every supported store.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Postgres returns the goose migrations for PostgreSQL.
func Postgres() fs.FS {
	return mustSub("postgres")
}

// SQLite returns the goose migrations for SQLite.
func SQLite() fs.FS {
	return mustSub("sqlite")
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(files, dir)
	if err != nil {
		panic(fmt.Sprintf("migrations: %s: %v", dir, err))
	}
	return sub
}
