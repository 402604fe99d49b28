package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tkeffer/weewx-xaggs/internal/metrics"
	"github.com/tkeffer/weewx-xaggs/internal/units"
)

// SQLStore implements DaySummaryStore over database/sql. One type serves
// every dialect; the constructors in sqlite.go, postgres.go and mysql.go
// differ only in how they open the connection.
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
	prefix  string
	logger  *slog.Logger
	metrics *metrics.Collector

	mu   sync.RWMutex
	meta Metadata
}

// Option configures an SQLStore.
type Option func(*SQLStore)

// WithTablePrefix overrides DefaultTablePrefix.
func WithTablePrefix(prefix string) Option {
	return func(s *SQLStore) { s.prefix = prefix }
}

// WithLogger sets the logger used for query tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLStore) { s.logger = l }
}

// WithMetrics records query durations and failures in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *SQLStore) { s.metrics = c }
}

// Open opens a store for the given dialect.
func Open(ctx context.Context, d Dialect, dsn string, opts ...Option) (*SQLStore, error) {
	switch d {
	case SQLite:
		return NewSQLiteStore(ctx, dsn, opts...)
	case Postgres:
		return NewPostgresStore(ctx, dsn, opts...)
	case MySQL:
		return NewMySQLStore(ctx, dsn, opts...)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", d)
	}
}

func newSQLStore(ctx context.Context, db *sql.DB, driverName string, d Dialect, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		db:      sqlx.NewDb(db, driverName),
		dialect: d,
		prefix:  DefaultTablePrefix,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Refresh(ctx); err != nil {
		if !errors.Is(err, ErrNoTable) {
			_ = db.Close()
			return nil, err
		}
		// An uninitialised database is allowed so that migrate can run.
		s.logger.Warn("archive table not found; store metadata is empty",
			"dialect", d, "table", s.prefix)
	}
	return s, nil
}

// DB returns the underlying database connection for migration commands.
func (s *SQLStore) DB() *sql.DB {
	return s.db.DB
}

// Dialect returns the store's SQL dialect.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Metadata returns the metadata loaded by the last Refresh.
func (s *SQLStore) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Refresh reloads the covered time range and unit system from the archive
// table. On error the previous metadata is left untouched, except that a
// missing archive table resets it to empty.
func (s *SQLStore) Refresh(ctx context.Context) error {
	meta := Metadata{Dialect: s.dialect, TablePrefix: s.prefix}

	table := s.dialect.Quote(s.prefix)
	dateTime := s.dialect.Quote("dateTime")

	var first, last sql.NullInt64
	err := s.db.QueryRowxContext(ctx,
		fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", dateTime, dateTime, table),
	).Scan(&first, &last)
	if err != nil {
		err = classifyError(err)
		if errors.Is(err, ErrNoTable) {
			s.mu.Lock()
			s.meta = meta
			s.mu.Unlock()
		}
		return fmt.Errorf("querying archive range: %w", err)
	}
	if first.Valid && last.Valid {
		meta.FirstTimestamp = &first.Int64
		meta.LastTimestamp = &last.Int64
	}

	var us int64
	err = s.db.QueryRowxContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s ORDER BY %s ASC LIMIT 1",
			s.dialect.Quote("usUnits"), table, dateTime),
	).Scan(&us)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("querying unit system: %w", classifyError(err))
	default:
		sys := units.System(us)
		if !sys.Valid() {
			return fmt.Errorf("archive declares unknown unit system %d", us)
		}
		meta.UnitSystem = &sys
	}

	s.mu.Lock()
	s.meta = meta
	s.mu.Unlock()

	s.logger.Debug("store metadata loaded",
		"dialect", s.dialect,
		"table_prefix", s.prefix,
		"has_data", meta.FirstTimestamp != nil,
	)
	return nil
}

// QueryRow implements DaySummaryStore.
func (s *SQLStore) QueryRow(ctx context.Context, queryType, query string, args ...any) (Row, error) {
	start := time.Now()
	q := s.db.Rebind(query)
	defer func() {
		d := time.Since(start)
		s.metrics.ObserveQuery(queryType, d)
		s.logger.Debug("query executed",
			"query_type", queryType,
			"duration_ms", d.Milliseconds(),
			"query", q,
		)
	}()

	vals, err := s.db.QueryRowxContext(ctx, q, args...).SliceScan()
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		err = classifyError(err)
		s.metrics.RecordQueryError(errorKind(err))
		return nil, fmt.Errorf("running %s query: %w", queryType, err)
	}

	row := make(Row, len(vals))
	for i, v := range vals {
		f, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("column %d of %s query: %w", i, queryType, err)
		}
		row[i] = f
	}
	return row, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Quote quotes an identifier for the dialect. SQLite gets backticks because
// a double-quoted name that matches no column silently becomes a string
// literal there.
func (d Dialect) Quote(ident string) string {
	if d == Postgres {
		return pq.QuoteIdentifier(ident)
	}
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// toFloat normalises the value types drivers hand back for numeric columns.
func toFloat(v any) (*float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int64:
		f = float64(t)
	case int32:
		f = float64(t)
	case int:
		f = float64(t)
	case uint64:
		f = float64(t)
	case []byte:
		return parseFloat(string(t))
	case string:
		return parseFloat(t)
	default:
		return nil, fmt.Errorf("unexpected value type %T", v)
	}
	return &f, nil
}

func parseFloat(s string) (*float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("parsing numeric value %q: %w", s, err)
	}
	return &f, nil
}
