package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// The embedded migrations create an empty archive and summary tables for
// the standard observation types under DefaultTablePrefix. They exist for
// development and tests; production archives are owned by the host.
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql migrations/mysql/*.sql
var migrations embed.FS

func gooseDialect(d Dialect) (string, error) {
	switch d {
	case SQLite:
		return "sqlite3", nil
	case Postgres:
		return "postgres", nil
	case MySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", d)
	}
}

// Migrate applies all pending schema migrations for d.
func Migrate(db *sql.DB, d Dialect) error {
	dialect, err := gooseDialect(d)
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations/"+string(d)); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// MigrationVersion reports the schema version recorded in db.
func MigrationVersion(db *sql.DB, d Dialect) (int64, error) {
	dialect, err := gooseDialect(d)
	if err != nil {
		return 0, err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}
