package xaggs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tkeffer/weewx-xaggs/internal/store"
	"github.com/tkeffer/weewx-xaggs/internal/units"
	"github.com/tkeffer/weewx-xaggs/internal/xtypes"
)

// Threshold aggregate names.
const (
	AvgGE = "avg_ge"
	AvgGT = "avg_gt"
	AvgLE = "avg_le"
	AvgLT = "avg_lt"
)

type comparison string

var comparisons = map[string]comparison{
	AvgGE: ">=",
	AvgGT: ">",
	AvgLE: "<=",
	AvgLT: "<",
}

// AvgCount counts the days in a span whose time-weighted daily average
// compares to a threshold. The threshold comes from Options.Val in any unit
// of the observation's group.
type AvgCount struct {
	resolver *units.Resolver
	logger   *slog.Logger
}

// NewAvgCount returns an AvgCount provider.
func NewAvgCount(resolver *units.Resolver, logger *slog.Logger) *AvgCount {
	return &AvgCount{resolver: resolver, logger: logger}
}

func (a *AvgCount) Name() string { return "avgcount" }

func (a *AvgCount) Aggregates() []string {
	return []string{AvgGE, AvgGT, AvgLE, AvgLT}
}

// GetAggregate implements xtypes.Provider.
func (a *AvgCount) GetAggregate(ctx context.Context, obsType string, span xtypes.TimeSpan, aggregate string,
	db store.DaySummaryStore, opts xtypes.Options) (xtypes.Result, error) {
	op, ok := comparisons[aggregate]
	if !ok {
		return xtypes.NotRecognized("%q is not a threshold aggregate", aggregate), nil
	}

	meta := db.Metadata()
	b, ok := builderFor(meta.Dialect)
	if !ok {
		return xtypes.NotRecognized("no %s query for dialect %q", aggregate, meta.Dialect), nil
	}
	if meta.UnitSystem == nil {
		return xtypes.Result{}, fmt.Errorf("%w: store declares no unit system to interpret the threshold",
			xtypes.ErrCannotCalculate)
	}
	if opts.Val == nil || opts.Val.Magnitude == nil {
		return xtypes.Result{}, fmt.Errorf("%w: %s needs a threshold value (val)", xtypes.ErrMissingOption, aggregate)
	}
	if !obsTypeRe.MatchString(obsType) {
		return xtypes.Result{}, fmt.Errorf("%w: %q", xtypes.ErrUnknownType, obsType)
	}

	threshold, err := a.resolver.ConvertToSystem(*opts.Val, *meta.UnitSystem)
	if err != nil {
		return xtypes.Result{}, fmt.Errorf("%w: converting threshold %s to %s: %w",
			xtypes.ErrCannotCalculate, opts.Val, *meta.UnitSystem, err)
	}

	query := b.avgCount(meta.DayTable(obsType), op)
	row, err := db.QueryRow(ctx, aggregate, query, span.Start, span.Stop, *threshold.Magnitude)
	if err != nil {
		if errors.Is(err, store.ErrNoColumn) {
			return xtypes.Result{}, fmt.Errorf("%w: %s has no weighted summary: %w", xtypes.ErrUnknownType, obsType, err)
		}
		return xtypes.Result{}, err
	}

	var count float64
	if len(row) > 0 && row[0] != nil {
		count = *row[0]
	}

	u, g := a.resolver.Resolve(*meta.UnitSystem, obsType, "count")
	a.logger.Debug("threshold day count",
		"obs_type", obsType,
		"aggregate", aggregate,
		"threshold", threshold.String(),
		"span", span.String(),
		"count", count,
	)
	return xtypes.Handled(units.NewQuantity(count, u, g)), nil
}
