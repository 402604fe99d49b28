package xaggs

import (
	"fmt"

	"github.com/tkeffer/weewx-xaggs/internal/store"
)

// queryBuilder renders the summary-table queries for one SQL dialect. Every
// query takes its values as '?' bind parameters; only quoted identifiers are
// formatted into the text.
type queryBuilder interface {
	historicalMin(table string) string
	historicalMinTime(table string) string
	historicalMinAvg(table string) string
	historicalMax(table string) string
	historicalMaxTime(table string) string
	historicalMaxAvg(table string) string
	historicalAvg(table string) string
	avgCount(table string, op comparison) string
}

// sqlBuilder is the queryBuilder shared by the supported dialects, which
// differ only in identifier quoting and how a Unix timestamp becomes a local
// "MM-DD" string.
type sqlBuilder struct {
	dialect  store.Dialect
	monthDay func(col string) string
}

var builders = map[store.Dialect]queryBuilder{
	store.SQLite: sqlBuilder{
		dialect: store.SQLite,
		monthDay: func(col string) string {
			return fmt.Sprintf("strftime('%%m-%%d', %s, 'unixepoch', 'localtime')", col)
		},
	},
	store.MySQL: sqlBuilder{
		dialect: store.MySQL,
		monthDay: func(col string) string {
			return fmt.Sprintf("FROM_UNIXTIME(%s, '%%m-%%d')", col)
		},
	},
	store.Postgres: sqlBuilder{
		dialect: store.Postgres,
		monthDay: func(col string) string {
			return fmt.Sprintf("to_char(to_timestamp(%s), 'MM-DD')", col)
		},
	},
}

func builderFor(d store.Dialect) (queryBuilder, bool) {
	b, ok := builders[d]
	return b, ok
}

func (b sqlBuilder) q(ident string) string { return b.dialect.Quote(ident) }

func (b sqlBuilder) onMonthDay(table string) string {
	return fmt.Sprintf("FROM %s WHERE %s = ?", b.q(table), b.monthDay(b.q("dateTime")))
}

func (b sqlBuilder) aggregate(fn, col, table string) string {
	return fmt.Sprintf("SELECT %s(%s) %s", fn, b.q(col), b.onMonthDay(table))
}

// extremeTime picks the time column of the most extreme day, earliest day
// first among ties.
func (b sqlBuilder) extremeTime(timeCol, valCol, dir, table string) string {
	return fmt.Sprintf("SELECT %s %s AND %s IS NOT NULL ORDER BY %s %s, %s ASC LIMIT 1",
		b.q(timeCol), b.onMonthDay(table), b.q(valCol), b.q(valCol), dir, b.q("dateTime"))
}

func (b sqlBuilder) historicalMin(table string) string { return b.aggregate("MIN", "min", table) }

func (b sqlBuilder) historicalMinTime(table string) string {
	return b.extremeTime("mintime", "min", "ASC", table)
}

func (b sqlBuilder) historicalMinAvg(table string) string { return b.aggregate("AVG", "min", table) }

func (b sqlBuilder) historicalMax(table string) string { return b.aggregate("MAX", "max", table) }

func (b sqlBuilder) historicalMaxTime(table string) string {
	return b.extremeTime("maxtime", "max", "DESC", table)
}

func (b sqlBuilder) historicalMaxAvg(table string) string { return b.aggregate("AVG", "max", table) }

func (b sqlBuilder) historicalAvg(table string) string {
	return fmt.Sprintf("SELECT SUM(%s), SUM(%s) %s", b.q("wsum"), b.q("sumtime"), b.onMonthDay(table))
}

// avgCount counts days in [?, ?) whose weighted average compares to ? by op.
// NULLIF turns zero-weight days into NULL averages, which match no
// comparison.
func (b sqlBuilder) avgCount(table string, op comparison) string {
	dt := b.q("dateTime")
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s >= ? AND %s < ? AND %s / NULLIF(%s, 0) %s ?",
		b.q(table), dt, dt, b.q("wsum"), b.q("sumtime"), op)
}
