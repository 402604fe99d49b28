package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Server error codes for missing columns and tables.
const (
	pgUndefinedColumn = "42703"
	pgUndefinedTable  = "42P01"

	mysqlBadField    = 1054
	mysqlNoSuchTable = 1146
)

// classifyError wraps driver errors about missing columns or tables with
// ErrNoColumn or ErrNoTable. Other errors are returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUndefinedColumn:
			return fmt.Errorf("%w: %w", ErrNoColumn, err)
		case pgUndefinedTable:
			return fmt.Errorf("%w: %w", ErrNoTable, err)
		}
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlBadField:
			return fmt.Errorf("%w: %w", ErrNoColumn, err)
		case mysqlNoSuchTable:
			return fmt.Errorf("%w: %w", ErrNoTable, err)
		}
		return err
	}

	// SQLite reports both conditions as SQLITE_ERROR; only the message
	// tells them apart.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such column"):
		return fmt.Errorf("%w: %w", ErrNoColumn, err)
	case strings.Contains(msg, "no such table"):
		return fmt.Errorf("%w: %w", ErrNoTable, err)
	}
	return err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNoColumn):
		return "no_column"
	case errors.Is(err, ErrNoTable):
		return "no_table"
	default:
		return "other"
	}
}
