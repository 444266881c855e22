// Package migrate applies the embedded Postgres schema with goose.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const dir = "migrations"

// Commands accepted by Run.
var Commands = []string{"up", "down", "status", "version", "redo"}

// Open connects to Postgres through lib/pq for goose, which works on
// database/sql rather than GORM.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// Run executes a goose command against db using the embedded migrations.
func Run(ctx context.Context, db *sql.DB, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if !known(command) {
		return fmt.Errorf("unknown migrate command %q", command)
	}

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	// RunContext prints status output to stdout (goose internal)
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// Files lists the embedded migration file names in order.
func Files() ([]string, error) {
	entries, err := migrations.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func known(command string) bool {
	for _, c := range Commands {
		if c == command {
			return true
		}
	}
	return false
}
