package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/tkeffer/weewx-xaggs/internal/store"
	"github.com/tkeffer/weewx-xaggs/internal/units"
	"github.com/tkeffer/weewx-xaggs/internal/xtypes"
)

var validate = validator.New()

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Registry      *xtypes.Registry
	Store         store.DaySummaryStore
	Logger        *slog.Logger
	StartTime     time.Time
	StorageDriver string
	Version       string
}

// apiError is a JSON error response.
type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg, Code: status})
}

// errorStatus maps an aggregation error to an HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, xtypes.ErrUnknownAggregation):
		return http.StatusBadRequest
	case errors.Is(err, xtypes.ErrUnknownType), errors.Is(err, store.ErrNoTable):
		return http.StatusNotFound
	case errors.Is(err, xtypes.ErrCannotCalculate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ParseTime accepts RFC3339, a local YYYY-MM-DD date, or Unix epoch seconds.
// A date means the first second of that local day.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return xtypes.DayStart(d.Year(), d.Month(), d.Day(), time.Local), nil
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(epoch, 0), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format: %q (expected RFC3339, YYYY-MM-DD, or Unix epoch)", s)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// aggregateQuery is the query string of GET /api/v1/aggregates/{obs_type}.
type aggregateQuery struct {
	Aggregate string `validate:"required"`
	Date      string `validate:"omitempty,datetime=2006-01-02,excluded_with=Start"`
	Start     string `validate:"required_without=Date"`
	Stop      string `validate:"required_with=Start"`
	Val       string `validate:"omitempty,numeric"`
	Unit      string `validate:"required_with=Val"`
}

func (q aggregateQuery) span() (xtypes.TimeSpan, error) {
	return ParseSpan(q.Date, q.Start, q.Stop)
}

// ParseSpan returns the local calendar day named by date, or [start, stop)
// when date is empty.
func ParseSpan(date, start, stop string) (xtypes.TimeSpan, error) {
	if date != "" {
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return xtypes.TimeSpan{}, err
		}
		return xtypes.LocalDay(d.Year(), d.Month(), d.Day(), time.Local), nil
	}
	from, err := ParseTime(start)
	if err != nil {
		return xtypes.TimeSpan{}, err
	}
	to, err := ParseTime(stop)
	if err != nil {
		return xtypes.TimeSpan{}, err
	}
	return xtypes.NewTimeSpan(from.Unix(), to.Unix())
}

func (q aggregateQuery) options() (xtypes.Options, error) {
	if q.Val == "" {
		return xtypes.Options{}, nil
	}
	v, err := strconv.ParseFloat(q.Val, 64)
	if err != nil {
		return xtypes.Options{}, err
	}
	val := units.NewQuantity(v, units.Unit(q.Unit), "")
	return xtypes.Options{Val: &val}, nil
}

type aggregateResponse struct {
	ObsType   string   `json:"obs_type"`
	Aggregate string   `json:"aggregate"`
	Start     string   `json:"start"`
	Stop      string   `json:"stop"`
	Value     *float64 `json:"value"`
	Unit      string   `json:"unit"`
	Group     string   `json:"group"`
}

// GetAggregate handles GET /api/v1/aggregates/{obs_type}
func (h *Handlers) GetAggregate(w http.ResponseWriter, r *http.Request) {
	obsType := mux.Vars(r)["obs_type"]
	qs := r.URL.Query()
	q := aggregateQuery{
		Aggregate: qs.Get("aggregate"),
		Date:      qs.Get("date"),
		Start:     qs.Get("start"),
		Stop:      qs.Get("stop"),
		Val:       qs.Get("val"),
		Unit:      qs.Get("unit"),
	}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query: "+err.Error())
		return
	}

	span, err := q.span()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid time span: "+err.Error())
		return
	}
	opts, err := q.options()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'val' parameter")
		return
	}

	result, err := h.Registry.GetAggregate(r.Context(), obsType, span, q.Aggregate, h.Store, opts)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("aggregate failed", "obs_type", obsType, "aggregate", q.Aggregate, "error", err)
			writeError(w, status, "failed to compute aggregate")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, aggregateResponse{
		ObsType:   obsType,
		Aggregate: q.Aggregate,
		Start:     time.Unix(span.Start, 0).Format(time.RFC3339),
		Stop:      time.Unix(span.Stop, 0).Format(time.RFC3339),
		Value:     result.Magnitude,
		Unit:      string(result.Unit),
		Group:     string(result.Group),
	})
}

// ListAggregates handles GET /api/v1/aggregates
func (h *Handlers) ListAggregates(w http.ResponseWriter, r *http.Request) {
	type providerResponse struct {
		Provider   string   `json:"provider"`
		Aggregates []string `json:"aggregates"`
	}

	providers := h.Registry.Providers()
	result := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		result = append(result, providerResponse{Provider: p.Name(), Aggregates: p.Aggregates()})
	}
	writeJSON(w, http.StatusOK, result)
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	type dbHealth struct {
		Driver      string `json:"driver"`
		TablePrefix string `json:"table_prefix"`
		Status      string `json:"status"`
		UnitSystem  string `json:"unit_system,omitempty"`
		Oldest      string `json:"data_range_oldest,omitempty"`
		Newest      string `json:"data_range_newest,omitempty"`
	}
	type healthResponse struct {
		Status    string   `json:"status"`
		Version   string   `json:"version"`
		Uptime    string   `json:"uptime"`
		Providers []string `json:"providers"`
		Database  dbHealth `json:"database"`
	}

	resp := healthResponse{
		Status:    "healthy",
		Version:   h.Version,
		Uptime:    formatUptime(time.Since(h.StartTime)),
		Providers: []string{},
	}
	for _, p := range h.Registry.Providers() {
		resp.Providers = append(resp.Providers, p.Name())
	}

	meta := h.Store.Metadata()
	resp.Database = dbHealth{
		Driver:      h.StorageDriver,
		TablePrefix: meta.TablePrefix,
		Status:      "ok",
	}
	if meta.UnitSystem != nil {
		resp.Database.UnitSystem = meta.UnitSystem.String()
	}
	if first, last := meta.DataRange(); !first.IsZero() {
		resp.Database.Oldest = first.Format(time.RFC3339)
		resp.Database.Newest = last.Format(time.RFC3339)
	} else {
		resp.Database.Status = "empty"
		resp.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, resp)
}
