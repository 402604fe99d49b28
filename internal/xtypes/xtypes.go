// Package xtypes defines the aggregation request types, the provider
// contract and the registry that dispatches a named aggregate to the first
// provider that handles it.
package xtypes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tkeffer/weewx-xaggs/internal/store"
	"github.com/tkeffer/weewx-xaggs/internal/units"
)

var (
	// ErrUnknownAggregation means no provider could answer the request.
	ErrUnknownAggregation = errors.New("unknown aggregation")

	// ErrUnknownType means the store has no summary data for the
	// observation type in the form the aggregate needs.
	ErrUnknownType = errors.New("unknown observation type")

	// ErrCannotCalculate means a store-side precondition, such as a declared
	// unit system, is missing.
	ErrCannotCalculate = errors.New("cannot calculate")

	// ErrMissingOption means a recognised aggregate was asked for without an
	// option it requires. It also matches ErrUnknownAggregation.
	ErrMissingOption = fmt.Errorf("%w: missing required option", ErrUnknownAggregation)
)

// TimeSpan is the half-open interval [Start, Stop) in Unix seconds.
type TimeSpan struct {
	Start int64
	Stop  int64
}

// NewTimeSpan returns the span [start, stop).
func NewTimeSpan(start, stop int64) (TimeSpan, error) {
	if start >= stop {
		return TimeSpan{}, fmt.Errorf("invalid time span: start %d is not before stop %d", start, stop)
	}
	return TimeSpan{Start: start, Stop: stop}, nil
}

// DaySpan returns the span covering the local calendar day containing t.
func DaySpan(t time.Time) TimeSpan {
	y, m, d := t.Date()
	return LocalDay(y, m, d, t.Location())
}

// LocalDay returns the span covering the calendar date y-m-d in loc. The
// span runs from the first second whose local date is y-m-d to the first
// second of the following date, so days that begin after a DST gap at
// midnight start at the end of the gap.
func LocalDay(y int, m time.Month, d int, loc *time.Location) TimeSpan {
	next := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
	return TimeSpan{
		Start: DayStart(y, m, d, loc).Unix(),
		Stop:  DayStart(next.Year(), next.Month(), next.Day(), loc).Unix(),
	}
}

// DayStart returns the first instant whose date in loc is y-m-d.
func DayStart(y int, m time.Month, d int, loc *time.Location) time.Time {
	target := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	// Local noon always falls on the requested date and no zone has ever
	// shifted by more than a day, so the start lies in the 36 hours before it.
	lo := time.Date(y, m, d, 12, 0, 0, 0, loc).Add(-36 * time.Hour)
	const window = 36 * 60 * 60
	n := sort.Search(window, func(i int) bool {
		ly, lm, ld := lo.Add(time.Duration(i) * time.Second).Date()
		return !time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC).Before(target)
	})
	return lo.Add(time.Duration(n) * time.Second)
}

func (s TimeSpan) String() string {
	return fmt.Sprintf("[%s, %s)",
		time.Unix(s.Start, 0).Format(time.RFC3339), time.Unix(s.Stop, 0).Format(time.RFC3339))
}

// Options carries per-request aggregate options.
type Options struct {
	// Val is the threshold for the avg_* comparison aggregates.
	Val *units.Quantity
}

// Provider computes one family of named aggregates against a summary store.
type Provider interface {
	Name() string
	Aggregates() []string
	GetAggregate(ctx context.Context, obsType string, span TimeSpan, aggregate string,
		db store.DaySummaryStore, opts Options) (Result, error)
}

// Result is either a handled value or a "not recognised" reason. Providers
// report request-shape problems through NotRecognized so the registry can
// move on to the next provider; errors are reserved for conditions that must
// reach the caller.
type Result struct {
	handled bool
	value   units.Quantity
	reason  string
}

// Handled returns a Result carrying q.
func Handled(q units.Quantity) Result {
	return Result{handled: true, value: q}
}

// NotRecognized returns a Result that passes the request on.
func NotRecognized(format string, args ...any) Result {
	return Result{reason: fmt.Sprintf(format, args...)}
}

func (r Result) Handled() bool { return r.handled }

func (r Result) Value() units.Quantity { return r.value }

func (r Result) Reason() string { return r.reason }
