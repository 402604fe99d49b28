// Package storetest builds migrated daily-summary stores and seeds them with
// archive and summary rows for tests.
package storetest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tkeffer/weewx-xaggs/internal/store"
	"github.com/tkeffer/weewx-xaggs/internal/units"
)

// Day is one summary row. Nil fields are stored as NULL.
type Day struct {
	DateTime int64
	Min      *float64
	MinTime  *int64
	Max      *float64
	MaxTime  *int64
	Wsum     *float64
	Sumtime  *int64
}

// F returns a pointer to v.
func F(v float64) *float64 { return &v }

// I returns a pointer to v.
func I(v int64) *int64 { return &v }

// Midnight returns the Unix time of local midnight on the given date.
func Midnight(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local).Unix()
}

// NewSQLite returns a migrated SQLite store in a temporary directory.
func NewSQLite(t testing.TB, opts ...store.Option) *store.SQLStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "weewx.sdb")
	s, err := store.NewSQLiteStore(context.Background(), dsn, opts...)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := store.Migrate(s.DB(), store.SQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

// AddArchive inserts archive records at each timestamp, declaring system,
// and refreshes the store metadata.
func AddArchive(t testing.TB, s *store.SQLStore, system units.System, timestamps ...int64) {
	t.Helper()
	d := s.Dialect()
	q := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)",
		d.Quote(s.Metadata().TablePrefix), d.Quote("dateTime"), d.Quote("usUnits"), d.Quote("interval"))
	for _, ts := range timestamps {
		if _, err := s.DB().Exec(rebind(d, q), ts, int64(system), 5); err != nil {
			t.Fatalf("inserting archive record: %v", err)
		}
	}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
}

// AddDays inserts summary rows for obsType.
func AddDays(t testing.TB, s *store.SQLStore, obsType string, days ...Day) {
	t.Helper()
	d := s.Dialect()
	q := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s) VALUES (?, ?, ?, ?, ?, ?, ?)",
		d.Quote(s.Metadata().DayTable(obsType)),
		d.Quote("dateTime"), d.Quote("min"), d.Quote("mintime"),
		d.Quote("max"), d.Quote("maxtime"), d.Quote("wsum"), d.Quote("sumtime"))
	for _, day := range days {
		if _, err := s.DB().Exec(rebind(d, q),
			day.DateTime, day.Min, day.MinTime, day.Max, day.MaxTime, day.Wsum, day.Sumtime,
		); err != nil {
			t.Fatalf("inserting %s day %d: %v", obsType, day.DateTime, err)
		}
	}
}

func rebind(d store.Dialect, q string) string {
	if d == store.Postgres {
		return sqlx.Rebind(sqlx.DOLLAR, q)
	}
	return q
}
