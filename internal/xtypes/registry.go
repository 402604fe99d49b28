package xtypes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tkeffer/weewx-xaggs/internal/metrics"
	"github.com/tkeffer/weewx-xaggs/internal/store"
	"github.com/tkeffer/weewx-xaggs/internal/units"
)

// Registry is an ordered set of providers.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	metrics   *metrics.Collector
}

// NewRegistry returns an empty registry. m may be nil.
func NewRegistry(m *metrics.Collector) *Registry {
	return &Registry{metrics: m}
}

// Add appends p unless that instance is already registered. It reports
// whether p was added.
func (r *Registry) Add(p Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.providers {
		if existing == p {
			return false
		}
	}
	r.providers = append(r.providers, p)
	return true
}

// Remove deletes exactly the instance p, leaving any other provider with
// the same name in place. It reports whether p was found.
func (r *Registry) Remove(p Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.providers {
		if existing == p {
			r.providers = append(r.providers[:i:i], r.providers[i+1:]...)
			return true
		}
	}
	return false
}

// Providers returns a snapshot of the registered providers in order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// GetAggregate asks each provider in turn and returns the first handled
// value. A provider error ends the search.
func (r *Registry) GetAggregate(ctx context.Context, obsType string, span TimeSpan, aggregate string,
	db store.DaySummaryStore, opts Options) (units.Quantity, error) {
	var reasons []string
	for _, p := range r.Providers() {
		res, err := p.GetAggregate(ctx, obsType, span, aggregate, db, opts)
		if err != nil {
			r.metrics.RecordAggregate(aggregate, outcome(err))
			return units.Quantity{}, fmt.Errorf("%s %s: %w", p.Name(), aggregate, err)
		}
		if res.Handled() {
			r.metrics.RecordAggregate(aggregate, "ok")
			return res.Value(), nil
		}
		reasons = append(reasons, p.Name()+": "+res.Reason())
	}

	r.metrics.RecordAggregate(aggregate, "unrecognized")
	if len(reasons) == 0 {
		return units.Quantity{}, fmt.Errorf("%w %q: no providers registered", ErrUnknownAggregation, aggregate)
	}
	return units.Quantity{}, fmt.Errorf("%w %q for %s over %s: %s",
		ErrUnknownAggregation, aggregate, obsType, span, strings.Join(reasons, "; "))
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrUnknownAggregation):
		return "unrecognized"
	case errors.Is(err, ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, ErrCannotCalculate):
		return "cannot_calculate"
	default:
		return "error"
	}
}
