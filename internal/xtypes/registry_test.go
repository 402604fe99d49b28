package xtypes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tkeffer/weewx-xaggs/internal/metrics"
	"github.com/tkeffer/weewx-xaggs/internal/store"
	"github.com/tkeffer/weewx-xaggs/internal/units"
)

type fakeProvider struct {
	name  string
	aggs  map[string]float64
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Aggregates() []string {
	var out []string
	for a := range f.aggs {
		out = append(out, a)
	}
	return out
}

func (f *fakeProvider) GetAggregate(_ context.Context, _ string, _ TimeSpan, aggregate string,
	_ store.DaySummaryStore, _ Options) (Result, error) {
	f.calls++
	if f.err != nil {
		return Result{}, f.err
	}
	v, ok := f.aggs[aggregate]
	if !ok {
		return NotRecognized("%s not handled", aggregate), nil
	}
	return Handled(units.NewQuantity(v, "count", units.GroupCount)), nil
}

func names(ps []Provider) string {
	var out []string
	for _, p := range ps {
		out = append(out, p.Name())
	}
	return strings.Join(out, ",")
}

func TestNewTimeSpan(t *testing.T) {
	if _, err := NewTimeSpan(10, 10); err == nil {
		t.Error("expected error for empty span")
	}
	if _, err := NewTimeSpan(20, 10); err == nil {
		t.Error("expected error for reversed span")
	}
	s, err := NewTimeSpan(10, 20)
	if err != nil {
		t.Fatalf("NewTimeSpan: %v", err)
	}
	if s.Start != 10 || s.Stop != 20 {
		t.Errorf("span = %+v", s)
	}
}

func TestRegistry_AddRemoveRoundTrip(t *testing.T) {
	r := NewRegistry(nil)
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	c := &fakeProvider{name: "c"}
	r.Add(a)
	r.Add(b)
	r.Add(c)
	before := names(r.Providers())

	mine := &fakeProvider{name: "b"}
	if !r.Add(mine) {
		t.Fatal("Add returned false for a new instance")
	}
	if r.Add(mine) {
		t.Error("second Add of the same instance should be a no-op")
	}
	if got := names(r.Providers()); got != "a,b,c,b" {
		t.Errorf("after add = %s", got)
	}

	if !r.Remove(mine) {
		t.Fatal("Remove returned false")
	}
	if got := names(r.Providers()); got != before {
		t.Errorf("after remove = %s, want %s", got, before)
	}
	// The same-named provider registered by someone else survives.
	if ps := r.Providers(); ps[1] != b {
		t.Error("Remove took out a different instance with the same name")
	}
	if r.Remove(mine) {
		t.Error("removing an absent provider should report false")
	}
}

func TestRegistry_GetAggregate(t *testing.T) {
	span, _ := NewTimeSpan(0, 86400)

	t.Run("first handled wins", func(t *testing.T) {
		first := &fakeProvider{name: "first", aggs: map[string]float64{"x": 1}}
		second := &fakeProvider{name: "second", aggs: map[string]float64{"x": 2, "y": 3}}
		r := NewRegistry(nil)
		r.Add(first)
		r.Add(second)

		q, err := r.GetAggregate(context.Background(), "outTemp", span, "x", nil, Options{})
		if err != nil {
			t.Fatalf("GetAggregate: %v", err)
		}
		if q.Magnitude == nil || *q.Magnitude != 1 {
			t.Errorf("x = %v, want 1", q)
		}
		if second.calls != 0 {
			t.Error("second provider consulted after first handled the request")
		}

		q, err = r.GetAggregate(context.Background(), "outTemp", span, "y", nil, Options{})
		if err != nil {
			t.Fatalf("GetAggregate: %v", err)
		}
		if *q.Magnitude != 3 {
			t.Errorf("y = %v, want 3", q)
		}
	})

	t.Run("unknown everywhere", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Add(&fakeProvider{name: "a", aggs: map[string]float64{"x": 1}})
		r.Add(&fakeProvider{name: "b", aggs: map[string]float64{"y": 1}})

		_, err := r.GetAggregate(context.Background(), "outTemp", span, "nope", nil, Options{})
		if !errors.Is(err, ErrUnknownAggregation) {
			t.Fatalf("err = %v, want ErrUnknownAggregation", err)
		}
		if !strings.Contains(err.Error(), "a: nope not handled") || !strings.Contains(err.Error(), "b: nope not handled") {
			t.Errorf("error does not list provider reasons: %v", err)
		}
	})

	t.Run("empty registry", func(t *testing.T) {
		_, err := NewRegistry(nil).GetAggregate(context.Background(), "outTemp", span, "x", nil, Options{})
		if !errors.Is(err, ErrUnknownAggregation) {
			t.Errorf("err = %v, want ErrUnknownAggregation", err)
		}
	})

	t.Run("error stops dispatch", func(t *testing.T) {
		failing := &fakeProvider{name: "failing", err: ErrUnknownType}
		next := &fakeProvider{name: "next", aggs: map[string]float64{"x": 1}}
		r := NewRegistry(nil)
		r.Add(failing)
		r.Add(next)

		_, err := r.GetAggregate(context.Background(), "outTemp", span, "x", nil, Options{})
		if !errors.Is(err, ErrUnknownType) {
			t.Errorf("err = %v, want ErrUnknownType", err)
		}
		if next.calls != 0 {
			t.Error("dispatch continued past a provider error")
		}
	})
}

func TestRegistry_Metrics(t *testing.T) {
	m := metrics.NewCollector(prometheus.NewRegistry())
	r := NewRegistry(m)
	r.Add(&fakeProvider{name: "a", aggs: map[string]float64{"x": 1}})
	span, _ := NewTimeSpan(0, 86400)

	_, _ = r.GetAggregate(context.Background(), "outTemp", span, "x", nil, Options{})
	_, _ = r.GetAggregate(context.Background(), "outTemp", span, "nope", nil, Options{})

	if got := testutil.ToFloat64(m.AggregatesTotal.WithLabelValues("x", "ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AggregatesTotal.WithLabelValues("nope", "unrecognized")); got != 1 {
		t.Errorf("unrecognized count = %v, want 1", got)
	}
}

func TestErrMissingOption(t *testing.T) {
	if !errors.Is(ErrMissingOption, ErrUnknownAggregation) {
		t.Error("ErrMissingOption should match ErrUnknownAggregation")
	}
}
