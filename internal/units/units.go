// Package units maps observation types and aggregates to units and
// physical-quantity groups, and converts values between unit systems.
package units

import (
	"fmt"
	"sync"
)

// System identifies a unit system as encoded in the archive's usUnits column.
type System int

const (
	US       System = 0x01
	Metric   System = 0x10
	MetricWX System = 0x11
)

func (s System) String() string {
	switch s {
	case US:
		return "US"
	case Metric:
		return "METRIC"
	case MetricWX:
		return "METRICWX"
	default:
		return fmt.Sprintf("System(%d)", int(s))
	}
}

// Valid reports whether s is a known unit system.
func (s System) Valid() bool {
	return s == US || s == Metric || s == MetricWX
}

// Unit names a unit of measure, e.g. "degree_C".
type Unit string

// Group names a physical-quantity group, e.g. "group_temperature".
type Group string

const (
	GroupTemperature Group = "group_temperature"
	GroupPressure    Group = "group_pressure"
	GroupSpeed       Group = "group_speed"
	GroupRain        Group = "group_rain"
	GroupPercent     Group = "group_percent"
	GroupDirection   Group = "group_direction"
	GroupRadiation   Group = "group_radiation"
	GroupUV          Group = "group_uv"
	GroupTime        Group = "group_time"
	GroupCount       Group = "group_count"
	GroupElapsed     Group = "group_elapsed"

	GroupRainRate      Group = "group_rainrate"
	GroupDistance      Group = "group_distance"
	GroupAltitude      Group = "group_altitude"
	GroupMoisture      Group = "group_moisture"
	GroupIlluminance   Group = "group_illuminance"
	GroupConcentration Group = "group_concentration"
	GroupFraction      Group = "group_fraction"
	GroupVolt          Group = "group_volt"
	GroupDB            Group = "group_db"
	GroupInterval      Group = "group_interval"
)

// Quantity is a scalar with its unit and group. A nil Magnitude means "no data".
type Quantity struct {
	Magnitude *float64
	Unit      Unit
	Group     Group
}

// NewQuantity returns a Quantity holding v.
func NewQuantity(v float64, u Unit, g Group) Quantity {
	return Quantity{Magnitude: &v, Unit: u, Group: g}
}

func (q Quantity) String() string {
	if q.Magnitude == nil {
		return fmt.Sprintf("(nil, %s, %s)", q.Unit, q.Group)
	}
	return fmt.Sprintf("(%g, %s, %s)", *q.Magnitude, q.Unit, q.Group)
}

var defaultObsGroups = map[string]Group{
	"outTemp":     GroupTemperature,
	"inTemp":      GroupTemperature,
	"dewpoint":    GroupTemperature,
	"inDewpoint":  GroupTemperature,
	"windchill":   GroupTemperature,
	"heatindex":   GroupTemperature,
	"humidex":     GroupTemperature,
	"appTemp":     GroupTemperature,
	"THSW":        GroupTemperature,
	"heatingTemp": GroupTemperature,
	"barometer":   GroupPressure,
	"pressure":    GroupPressure,
	"altimeter":   GroupPressure,
	"outHumidity": GroupPercent,
	"inHumidity":  GroupPercent,

	"windSpeed":   GroupSpeed,
	"windGust":    GroupSpeed,
	"windSpeed10": GroupSpeed,
	"windvec":     GroupSpeed,
	"windgustvec": GroupSpeed,
	"windDir":     GroupDirection,
	"windGustDir": GroupDirection,
	"windrun":     GroupDistance,
	"rain":        GroupRain,
	"ET":          GroupRain,
	"hail":        GroupRain,
	"snow":        GroupRain,
	"snowDepth":   GroupRain,
	"rainRate":    GroupRainRate,
	"hailRate":    GroupRainRate,
	"snowRate":    GroupRainRate,
	"rainDur":     GroupElapsed,
	"sunshineDur": GroupElapsed,
	"radiation":   GroupRadiation,
	"maxSolarRad": GroupRadiation,
	"UV":          GroupUV,
	"illuminance": GroupIlluminance,
	"cloudbase":   GroupAltitude,
	"co2":         GroupFraction,
	"nh3":         GroupFraction,
	"pm1_0":       GroupConcentration,
	"pm2_5":       GroupConcentration,
	"pm10_0":      GroupConcentration,
	"noise":       GroupDB,

	"lightning_distance":     GroupDistance,
	"lightning_strike_count": GroupCount,

	"rxCheckPercent":     GroupPercent,
	"consBatteryVoltage": GroupVolt,
	"heatingVoltage":     GroupVolt,
	"supplyVoltage":      GroupVolt,
	"referenceVoltage":   GroupVolt,

	"interval": GroupInterval,
	"dateTime": GroupTime,
}

// numberedObsGroups lists the numbered sensor channels of the standard
// schema: extraTemp1..extraTemp7 and so on.
var numberedObsGroups = []struct {
	prefix string
	n      int
	group  Group
}{
	{"extraTemp", 7, GroupTemperature},
	{"extraHumid", 7, GroupPercent},
	{"soilTemp", 4, GroupTemperature},
	{"leafTemp", 4, GroupTemperature},
	{"soilMoist", 4, GroupMoisture},
	{"leafWet", 2, GroupCount},
}

var defaultAggGroups = map[string]Group{
	"count":     GroupCount,
	"mintime":   GroupTime,
	"maxtime":   GroupTime,
	"firsttime": GroupTime,
	"lasttime":  GroupTime,
}

var defaultSystemUnits = map[System]map[Group]Unit{
	US: {
		GroupTemperature: "degree_F",
		GroupPressure:    "inHg",
		GroupSpeed:       "mile_per_hour",
		GroupRain:        "inch",
		GroupPercent:     "percent",
		GroupDirection:   "degree_compass",
		GroupRadiation:   "watt_per_meter_squared",
		GroupUV:          "uv_index",
		GroupTime:        "unix_epoch",
		GroupCount:       "count",
		GroupElapsed:     "second",

		GroupRainRate:      "inch_per_hour",
		GroupDistance:      "mile",
		GroupAltitude:      "foot",
		GroupMoisture:      "centibar",
		GroupIlluminance:   "lux",
		GroupConcentration: "microgram_per_meter_cubed",
		GroupFraction:      "ppm",
		GroupVolt:          "volt",
		GroupDB:            "dB",
		GroupInterval:      "minute",
	},
	Metric: {
		GroupTemperature: "degree_C",
		GroupPressure:    "mbar",
		GroupSpeed:       "km_per_hour",
		GroupRain:        "cm",
		GroupPercent:     "percent",
		GroupDirection:   "degree_compass",
		GroupRadiation:   "watt_per_meter_squared",
		GroupUV:          "uv_index",
		GroupTime:        "unix_epoch",
		GroupCount:       "count",
		GroupElapsed:     "second",

		GroupRainRate:      "cm_per_hour",
		GroupDistance:      "km",
		GroupAltitude:      "meter",
		GroupMoisture:      "centibar",
		GroupIlluminance:   "lux",
		GroupConcentration: "microgram_per_meter_cubed",
		GroupFraction:      "ppm",
		GroupVolt:          "volt",
		GroupDB:            "dB",
		GroupInterval:      "minute",
	},
	MetricWX: {
		GroupTemperature: "degree_C",
		GroupPressure:    "mbar",
		GroupSpeed:       "meter_per_second",
		GroupRain:        "mm",
		GroupPercent:     "percent",
		GroupDirection:   "degree_compass",
		GroupRadiation:   "watt_per_meter_squared",
		GroupUV:          "uv_index",
		GroupTime:        "unix_epoch",
		GroupCount:       "count",
		GroupElapsed:     "second",

		GroupRainRate:      "mm_per_hour",
		GroupDistance:      "km",
		GroupAltitude:      "meter",
		GroupMoisture:      "centibar",
		GroupIlluminance:   "lux",
		GroupConcentration: "microgram_per_meter_cubed",
		GroupFraction:      "ppm",
		GroupVolt:          "volt",
		GroupDB:            "dB",
		GroupInterval:      "minute",
	},
}

// Resolver answers which unit and group a value belongs to. The zero value
// is not usable; call NewResolver.
type Resolver struct {
	mu        sync.RWMutex
	obsGroups map[string]Group
	aggGroups map[string]Group
	units     map[System]map[Group]Unit
	unitGroup map[Unit]Group
}

// NewResolver returns a Resolver loaded with the standard tables.
func NewResolver() *Resolver {
	r := &Resolver{
		obsGroups: make(map[string]Group, len(defaultObsGroups)),
		aggGroups: make(map[string]Group, len(defaultAggGroups)),
		units:     make(map[System]map[Group]Unit, len(defaultSystemUnits)),
		unitGroup: make(map[Unit]Group),
	}
	for k, v := range defaultObsGroups {
		r.obsGroups[k] = v
	}
	for _, ch := range numberedObsGroups {
		for i := 1; i <= ch.n; i++ {
			r.obsGroups[fmt.Sprintf("%s%d", ch.prefix, i)] = ch.group
		}
	}
	for k, v := range defaultAggGroups {
		r.aggGroups[k] = v
	}
	for sys, groups := range defaultSystemUnits {
		m := make(map[Group]Unit, len(groups))
		for g, u := range groups {
			m[g] = u
			r.unitGroup[u] = g
		}
		r.units[sys] = m
	}
	for pair := range conversions {
		if g, ok := r.unitGroup[pair.to]; ok {
			if _, known := r.unitGroup[pair.from]; !known {
				r.unitGroup[pair.from] = g
			}
		}
	}
	return r
}

// RegisterAggregateGroup declares that aggregate always yields a value in
// group g regardless of the observation type. Registering the same pair twice
// is a no-op; registering a different group for a known aggregate is an error.
func (r *Resolver) RegisterAggregateGroup(aggregate string, g Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.aggGroups[aggregate]; ok {
		if existing == g {
			return nil
		}
		return fmt.Errorf("aggregate %q already mapped to %s", aggregate, existing)
	}
	r.aggGroups[aggregate] = g
	return nil
}

// RegisterObservationType maps an observation type to a group, replacing
// any existing mapping. The group must have a unit in every unit system.
func (r *Resolver) RegisterObservationType(obsType string, g Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sys, groups := range r.units {
		if _, ok := groups[g]; !ok {
			return fmt.Errorf("observation type %q: group %q has no unit in %s", obsType, g, sys)
		}
	}
	r.obsGroups[obsType] = g
	return nil
}

// Resolve returns the unit and group of aggregate applied to obsType in
// system. Unknown types resolve to an empty unit and group.
func (r *Resolver) Resolve(system System, obsType, aggregate string) (Unit, Group) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.aggGroups[aggregate]
	if !ok {
		g, ok = r.obsGroups[obsType]
		if !ok {
			return "", ""
		}
	}
	return r.units[system][g], g
}

// GroupOf returns the group an observation type belongs to.
func (r *Resolver) GroupOf(obsType string) (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.obsGroups[obsType]
	return g, ok
}

// AggregateGroup returns the group registered for aggregate, if any.
func (r *Resolver) AggregateGroup(aggregate string) (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.aggGroups[aggregate]
	return g, ok
}

// GroupForUnit returns the group a unit measures.
func (r *Resolver) GroupForUnit(u Unit) (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.unitGroup[u]
	return g, ok
}

// UnitFor returns the unit system uses for group g.
func (r *Resolver) UnitFor(system System, g Group) (Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[system][g]
	return u, ok
}

// ConvertToSystem converts q to the unit system uses for q's group.
func (r *Resolver) ConvertToSystem(q Quantity, system System) (Quantity, error) {
	g := q.Group
	if g == "" {
		var ok bool
		if g, ok = r.GroupForUnit(q.Unit); !ok {
			return Quantity{}, fmt.Errorf("unknown unit %q", q.Unit)
		}
	}
	target, ok := r.UnitFor(system, g)
	if !ok {
		return Quantity{}, fmt.Errorf("no unit for %s in %s", g, system)
	}
	out, err := Convert(q, target)
	if err != nil {
		return Quantity{}, err
	}
	out.Group = g
	return out, nil
}
