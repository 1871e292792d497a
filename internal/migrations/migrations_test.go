package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestBundledMigrations(t *testing.T) {
	t.Parallel()

	for name, fsys := range map[string]fs.FS{"postgres": Postgres(), "sqlite": SQLite()} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			entries, err := fs.ReadDir(fsys, ".")
			if err != nil {
				t.Fatalf("read dir: %v", err)
			}
			if len(entries) == 0 {
				t.Fatal("expected at least one migration")
			}

			data, err := fs.ReadFile(fsys, entries[0].Name())
			if err != nil {
				t.Fatalf("read migration: %v", err)
			}
			sql := string(data)
			for _, want := range []string{"-- +goose Up", "-- +goose Down", "CREATE TABLE IF NOT EXISTS users"} {
				if !strings.Contains(sql, want) {
					t.Errorf("%s missing %q", entries[0].Name(), want)
				}
			}
		})
	}
}
