package xaggs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/tkeffer/weewx-xaggs/internal/store"
	"github.com/tkeffer/weewx-xaggs/internal/units"
	"github.com/tkeffer/weewx-xaggs/internal/xtypes"
)

// Historical aggregate names.
const (
	HistoricalMin     = "historical_min"
	HistoricalMinTime = "historical_mintime"
	HistoricalMinAvg  = "historical_min_avg"
	HistoricalMax     = "historical_max"
	HistoricalMaxTime = "historical_maxtime"
	HistoricalMaxAvg  = "historical_max_avg"
	HistoricalAvg     = "historical_avg"
)

var historicalQueries = map[string]func(queryBuilder, string) string{
	HistoricalMin:     queryBuilder.historicalMin,
	HistoricalMinTime: queryBuilder.historicalMinTime,
	HistoricalMinAvg:  queryBuilder.historicalMinAvg,
	HistoricalMax:     queryBuilder.historicalMax,
	HistoricalMaxTime: queryBuilder.historicalMaxTime,
	HistoricalMaxAvg:  queryBuilder.historicalMaxAvg,
	HistoricalAvg:     queryBuilder.historicalAvg,
}

var obsTypeRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Historical answers "this calendar day across every recorded year"
// questions from the daily summaries: the record low or high, when it
// happened, the mean of the daily lows or highs, and the time-weighted mean.
type Historical struct {
	resolver *units.Resolver
	logger   *slog.Logger
	loc      *time.Location
}

// NewHistorical returns a Historical provider that interprets day
// boundaries in the local time zone.
func NewHistorical(resolver *units.Resolver, logger *slog.Logger) *Historical {
	return &Historical{resolver: resolver, logger: logger, loc: time.Local}
}

func (h *Historical) Name() string { return "historical" }

func (h *Historical) Aggregates() []string {
	return []string{
		HistoricalMin, HistoricalMinTime, HistoricalMinAvg,
		HistoricalMax, HistoricalMaxTime, HistoricalMaxAvg,
		HistoricalAvg,
	}
}

// GetAggregate implements xtypes.Provider. The span must cover exactly one
// local calendar day; the first and last days of the archive may be
// partial.
func (h *Historical) GetAggregate(ctx context.Context, obsType string, span xtypes.TimeSpan, aggregate string,
	db store.DaySummaryStore, _ xtypes.Options) (xtypes.Result, error) {
	build, ok := historicalQueries[aggregate]
	if !ok {
		return xtypes.NotRecognized("%q is not a historical aggregate", aggregate), nil
	}

	meta := db.Metadata()
	b, ok := builderFor(meta.Dialect)
	if !ok {
		return xtypes.NotRecognized("no %s query for dialect %q", aggregate, meta.Dialect), nil
	}
	if meta.FirstTimestamp == nil || meta.LastTimestamp == nil {
		return xtypes.NotRecognized("store has no data range"), nil
	}
	if span.Start != *meta.FirstTimestamp && !h.startOfDay(span.Start) {
		return xtypes.NotRecognized("span start %d is not at local midnight", span.Start), nil
	}
	if span.Stop != *meta.LastTimestamp && !h.startOfDay(span.Stop) {
		return xtypes.NotRecognized("span stop %d is not at local midnight", span.Stop), nil
	}
	if n := h.daysBetween(span.Start, span.Stop); n != 1 {
		return xtypes.NotRecognized("span covers %d calendar days, want 1", n), nil
	}

	if !obsTypeRe.MatchString(obsType) {
		return xtypes.Result{}, fmt.Errorf("%w: %q", xtypes.ErrUnknownType, obsType)
	}

	start := time.Unix(span.Start, 0).In(h.loc)
	monthDay := start.Format("01-02")
	query := build(b, meta.DayTable(obsType))

	row, err := db.QueryRow(ctx, aggregate, query, monthDay)
	if err != nil {
		if errors.Is(err, store.ErrNoColumn) {
			return xtypes.Result{}, fmt.Errorf("%w: %s has no summary column for %s: %w",
				xtypes.ErrUnknownType, obsType, aggregate, err)
		}
		return xtypes.Result{}, err
	}

	var value *float64
	if aggregate == HistoricalAvg {
		value = weightedMean(row)
	} else if len(row) > 0 {
		value = row[0]
	}

	q := h.quantity(value, meta, obsType, aggregate)
	h.logger.Debug("historical aggregate",
		"obs_type", obsType,
		"aggregate", aggregate,
		"month_day", monthDay,
		"value", q.String(),
	)
	return xtypes.Handled(q), nil
}

func (h *Historical) quantity(v *float64, meta store.Metadata, obsType, aggregate string) units.Quantity {
	if meta.UnitSystem == nil {
		g, _ := h.resolver.GroupOf(obsType)
		if ag, ok := h.resolver.AggregateGroup(aggregate); ok {
			g = ag
		}
		return units.Quantity{Magnitude: v, Group: g}
	}
	u, g := h.resolver.Resolve(*meta.UnitSystem, obsType, aggregate)
	return units.Quantity{Magnitude: v, Unit: u, Group: g}
}

// startOfDay reports whether ts is the first second of a local calendar
// day. Comparing with the previous second rather than testing for 00:00
// keeps zones whose DST change skips midnight working.
func (h *Historical) startOfDay(ts int64) bool {
	y1, m1, d1 := time.Unix(ts, 0).In(h.loc).Date()
	y0, m0, d0 := time.Unix(ts-1, 0).In(h.loc).Date()
	return y1 != y0 || m1 != m0 || d1 != d0
}

// daysBetween returns the number of calendar days between the local dates
// of start and stop.
func (h *Historical) daysBetween(start, stop int64) int {
	date := func(ts int64) time.Time {
		y, m, d := time.Unix(ts, 0).In(h.loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return int(date(stop).Sub(date(start)).Hours() / 24)
}

// weightedMean returns SUM(wsum)/SUM(sumtime), or nil when either sum is
// NULL or no time was summed.
func weightedMean(row store.Row) *float64 {
	if len(row) < 2 || row[0] == nil || row[1] == nil || *row[1] == 0 {
		return nil
	}
	v := *row[0] / *row[1]
	return &v
}
