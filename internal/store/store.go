package store

import (
	"context"
	"errors"
	"time"

	"github.com/tkeffer/weewx-xaggs/internal/units"
)

// Dialect tags the SQL flavour of a store.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// DefaultTablePrefix is the name of the archive table; daily summaries live
// in "<prefix>_day_<obsType>".
const DefaultTablePrefix = "archive"

var (
	// ErrNoColumn is returned when a query names a column the summary
	// table does not have.
	ErrNoColumn = errors.New("no such column")

	// ErrNoTable is returned when the summary table does not exist.
	ErrNoTable = errors.New("no such table")
)

// DaySummaryStore is read access to per-observation-type daily summaries.
// The SQL-backed implementation and test doubles satisfy it.
type DaySummaryStore interface {
	// Metadata returns the store's dialect, table prefix, covered time
	// range and unit system.
	Metadata() Metadata

	// QueryRow runs a single-row query written with '?' placeholders and
	// returns its columns as nullable floats. A query that yields no row
	// returns a nil Row and no error. queryType labels the query in logs
	// and metrics.
	QueryRow(ctx context.Context, queryType, query string, args ...any) (Row, error)
}

// Row is one result row. A nil element is a SQL NULL.
type Row []*float64

// Metadata describes a daily-summary store. Nil pointers mean "unknown", as
// for an empty archive.
type Metadata struct {
	Dialect        Dialect
	TablePrefix    string
	FirstTimestamp *int64
	LastTimestamp  *int64
	UnitSystem     *units.System
}

// DayTable returns the summary table name for obsType.
func (m Metadata) DayTable(obsType string) string {
	return m.TablePrefix + "_day_" + obsType
}

// DataRange returns the first and last archive times. Both are zero when the
// archive is empty.
func (m Metadata) DataRange() (first, last time.Time) {
	if m.FirstTimestamp == nil || m.LastTimestamp == nil {
		return time.Time{}, time.Time{}
	}
	return time.Unix(*m.FirstTimestamp, 0), time.Unix(*m.LastTimestamp, 0)
}
