package units

import (
	"math"
	"testing"
)

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name      string
		system    System
		obsType   string
		aggregate string
		wantUnit  Unit
		wantGroup Group
	}{
		{"US temperature", US, "outTemp", "max", "degree_F", GroupTemperature},
		{"metric temperature", Metric, "outTemp", "min", "degree_C", GroupTemperature},
		{"metricwx speed", MetricWX, "windSpeed", "avg", "meter_per_second", GroupSpeed},
		{"metric rain", Metric, "rain", "sum", "cm", GroupRain},
		{"count aggregate", US, "outTemp", "count", "count", GroupCount},
		{"mintime aggregate", Metric, "barometer", "mintime", "unix_epoch", GroupTime},
		{"US rain rate", US, "rainRate", "max", "inch_per_hour", GroupRainRate},
		{"extra temperature", US, "extraTemp1", "max", "degree_F", GroupTemperature},
		{"soil temperature", Metric, "soilTemp4", "min", "degree_C", GroupTemperature},
		{"leaf temperature", US, "leafTemp1", "max", "degree_F", GroupTemperature},
		{"soil moisture", US, "soilMoist2", "avg", "centibar", GroupMoisture},
		{"evapotranspiration", MetricWX, "ET", "sum", "mm", GroupRain},
		{"snow depth", US, "snowDepth", "max", "inch", GroupRain},
		{"lightning distance", US, "lightning_distance", "min", "mile", GroupDistance},
		{"lightning count", Metric, "lightning_strike_count", "sum", "count", GroupCount},
		{"cloudbase", MetricWX, "cloudbase", "min", "meter", GroupAltitude},
		{"rain duration", US, "rainDur", "sum", "second", GroupElapsed},
		{"battery", US, "consBatteryVoltage", "min", "volt", GroupVolt},
		{"unknown type", US, "noSuchType", "max", "", ""},
		{"past last channel", US, "extraTemp8", "max", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, g := r.Resolve(tt.system, tt.obsType, tt.aggregate)
			if u != tt.wantUnit || g != tt.wantGroup {
				t.Errorf("Resolve = (%q, %q), want (%q, %q)", u, g, tt.wantUnit, tt.wantGroup)
			}
		})
	}
}

func TestResolver_RegisterAggregateGroup(t *testing.T) {
	r := NewResolver()

	if u, g := r.Resolve(US, "outTemp", "historical_mintime"); g != GroupTemperature || u != "degree_F" {
		t.Fatalf("before registration: got (%q, %q)", u, g)
	}

	if err := r.RegisterAggregateGroup("historical_mintime", GroupTime); err != nil {
		t.Fatalf("RegisterAggregateGroup: %v", err)
	}
	// Same mapping again is fine.
	if err := r.RegisterAggregateGroup("historical_mintime", GroupTime); err != nil {
		t.Fatalf("second RegisterAggregateGroup: %v", err)
	}
	if err := r.RegisterAggregateGroup("historical_mintime", GroupCount); err == nil {
		t.Error("expected error for conflicting registration")
	}

	u, g := r.Resolve(US, "outTemp", "historical_mintime")
	if u != "unix_epoch" || g != GroupTime {
		t.Errorf("after registration: got (%q, %q), want (unix_epoch, group_time)", u, g)
	}

	if g, ok := r.AggregateGroup("historical_mintime"); !ok || g != GroupTime {
		t.Errorf("AggregateGroup = (%q, %v)", g, ok)
	}

	// Other resolvers are unaffected.
	if _, g := NewResolver().Resolve(US, "outTemp", "historical_mintime"); g != GroupTemperature {
		t.Errorf("fresh resolver group = %q, want %q", g, GroupTemperature)
	}
}

func TestResolver_DefaultTablesComplete(t *testing.T) {
	r := NewResolver()
	for obsType, g := range r.obsGroups {
		for _, sys := range []System{US, Metric, MetricWX} {
			if _, ok := r.UnitFor(sys, g); !ok {
				t.Errorf("%s (%s) has no unit in %s", obsType, g, sys)
			}
		}
	}
}

func TestResolver_RegisterObservationType(t *testing.T) {
	r := NewResolver()

	if u, g := r.Resolve(US, "poolTemp", "max"); u != "" || g != "" {
		t.Fatalf("before registration: got (%q, %q)", u, g)
	}
	if err := r.RegisterObservationType("poolTemp", GroupTemperature); err != nil {
		t.Fatalf("RegisterObservationType: %v", err)
	}
	if u, g := r.Resolve(Metric, "poolTemp", "max"); u != "degree_C" || g != GroupTemperature {
		t.Errorf("after registration: got (%q, %q)", u, g)
	}

	// Existing types can be remapped.
	if err := r.RegisterObservationType("leafWet1", GroupPercent); err != nil {
		t.Fatalf("remap: %v", err)
	}
	if g, ok := r.GroupOf("leafWet1"); !ok || g != GroupPercent {
		t.Errorf("GroupOf(leafWet1) = (%q, %v), want group_percent", g, ok)
	}

	if err := r.RegisterObservationType("gadget", "group_gizmo"); err == nil {
		t.Error("expected error for a group without units")
	}
	if _, ok := r.GroupOf("gadget"); ok {
		t.Error("rejected mapping was stored")
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		in   Quantity
		to   Unit
		want float64
	}{
		{"C to F", NewQuantity(100, "degree_C", GroupTemperature), "degree_F", 212},
		{"F to C", NewQuantity(32, "degree_F", GroupTemperature), "degree_C", 0},
		{"mbar to inHg", NewQuantity(1013.25, "mbar", GroupPressure), "inHg", 29.921},
		{"m/s to mph", NewQuantity(10, "meter_per_second", GroupSpeed), "mile_per_hour", 22.369},
		{"inch to mm", NewQuantity(1, "inch", GroupRain), "mm", 25.4},
		{"identity", NewQuantity(5, "mm", GroupRain), "mm", 5},
		{"mm/h to in/h", NewQuantity(25.4, "mm_per_hour", GroupRainRate), "inch_per_hour", 1},
		{"km to mile", NewQuantity(10, "km", GroupDistance), "mile", 6.214},
		{"foot to meter", NewQuantity(1000, "foot", GroupAltitude), "meter", 304.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.in, tt.to)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if got.Unit != tt.to {
				t.Errorf("unit = %q, want %q", got.Unit, tt.to)
			}
			if math.Abs(*got.Magnitude-tt.want) > 0.001 {
				t.Errorf("value = %v, want %v", *got.Magnitude, tt.want)
			}
		})
	}

	if _, err := Convert(NewQuantity(1, "degree_C", GroupTemperature), "mbar"); err == nil {
		t.Error("expected error converting temperature to pressure")
	}

	nilQ, err := Convert(Quantity{Unit: "degree_C", Group: GroupTemperature}, "degree_F")
	if err != nil {
		t.Fatalf("nil convert: %v", err)
	}
	if nilQ.Magnitude != nil {
		t.Errorf("nil magnitude became %v", *nilQ.Magnitude)
	}
}

func TestResolver_ConvertToSystem(t *testing.T) {
	r := NewResolver()

	got, err := r.ConvertToSystem(NewQuantity(5, "degree_C", GroupTemperature), US)
	if err != nil {
		t.Fatalf("ConvertToSystem: %v", err)
	}
	if got.Unit != "degree_F" || math.Abs(*got.Magnitude-41) > 1e-9 {
		t.Errorf("got %v, want 41 degree_F", got)
	}

	// Group inferred from unit.
	got, err = r.ConvertToSystem(Quantity{Magnitude: ptr(30.0), Unit: "inHg"}, MetricWX)
	if err != nil {
		t.Fatalf("ConvertToSystem without group: %v", err)
	}
	if got.Unit != "mbar" || got.Group != GroupPressure {
		t.Errorf("got %v, want mbar/group_pressure", got)
	}

	if _, err := r.ConvertToSystem(Quantity{Magnitude: ptr(1.0), Unit: "furlong"}, US); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestResolver_GroupForUnit(t *testing.T) {
	r := NewResolver()
	for u, want := range map[Unit]Group{
		"degree_F": GroupTemperature,
		"degree_K": GroupTemperature,
		"hPa":      GroupPressure,
		"knot":     GroupSpeed,
		"mm":       GroupRain,
	} {
		if g, ok := r.GroupForUnit(u); !ok || g != want {
			t.Errorf("GroupForUnit(%q) = %q, %v; want %q", u, g, ok, want)
		}
	}
}

func ptr(v float64) *float64 { return &v }
