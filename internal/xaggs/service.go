// Package xaggs provides the historical-extreme and threshold-day-count
// aggregates computed from daily summary tables.
package xaggs

import (
	"fmt"
	"log/slog"

	"github.com/tkeffer/weewx-xaggs/internal/units"
	"github.com/tkeffer/weewx-xaggs/internal/xtypes"
)

// RegisterGroups maps the time-valued historical aggregates to group_time.
// It is safe to call more than once.
func RegisterGroups(r *units.Resolver) error {
	for _, agg := range []string{HistoricalMinTime, HistoricalMaxTime} {
		if err := r.RegisterAggregateGroup(agg, units.GroupTime); err != nil {
			return fmt.Errorf("registering %s: %w", agg, err)
		}
	}
	return nil
}

// Service owns one Historical and one AvgCount provider and their
// membership in a registry.
type Service struct {
	registry   *xtypes.Registry
	historical *Historical
	avgCount   *AvgCount
	logger     *slog.Logger
}

// NewService creates the providers and registers the aggregate groups they
// rely on with resolver.
func NewService(reg *xtypes.Registry, resolver *units.Resolver, logger *slog.Logger) (*Service, error) {
	if err := RegisterGroups(resolver); err != nil {
		return nil, err
	}
	return &Service{
		registry:   reg,
		historical: NewHistorical(resolver, logger),
		avgCount:   NewAvgCount(resolver, logger),
		logger:     logger,
	}, nil
}

// Start adds the providers to the registry.
func (s *Service) Start() {
	for _, p := range s.providers() {
		if s.registry.Add(p) {
			s.logger.Info("aggregate provider registered", "provider", p.Name(), "aggregates", p.Aggregates())
		}
	}
}

// Stop removes the providers added by Start and nothing else.
func (s *Service) Stop() {
	for _, p := range s.providers() {
		if s.registry.Remove(p) {
			s.logger.Info("aggregate provider removed", "provider", p.Name())
		}
	}
}

func (s *Service) providers() []xtypes.Provider {
	return []xtypes.Provider{s.historical, s.avgCount}
}
