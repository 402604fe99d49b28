package units

import "fmt"

type unitPair struct {
	from, to Unit
}

// conversions holds direct conversion functions. Inverses are registered
// explicitly so no function has to be inverted numerically.
var conversions = map[unitPair]func(float64) float64{
	// Temperature
	{"degree_C", "degree_F"}: func(x float64) float64 { return x*9.0/5.0 + 32 },
	{"degree_F", "degree_C"}: func(x float64) float64 { return (x - 32) * 5.0 / 9.0 },
	{"degree_K", "degree_C"}: func(x float64) float64 { return x - 273.15 },
	{"degree_C", "degree_K"}: func(x float64) float64 { return x + 273.15 },
	{"degree_K", "degree_F"}: func(x float64) float64 { return (x-273.15)*9.0/5.0 + 32 },
	{"degree_F", "degree_K"}: func(x float64) float64 { return (x-32)*5.0/9.0 + 273.15 },

	// Pressure
	{"mbar", "inHg"}: func(x float64) float64 { return x * 0.0295299830714 },
	{"inHg", "mbar"}: func(x float64) float64 { return x * 33.8638866667 },
	{"hPa", "mbar"}:  func(x float64) float64 { return x },
	{"mbar", "hPa"}:  func(x float64) float64 { return x },
	{"hPa", "inHg"}:  func(x float64) float64 { return x * 0.0295299830714 },
	{"inHg", "hPa"}:  func(x float64) float64 { return x * 33.8638866667 },
	{"kPa", "mbar"}:  func(x float64) float64 { return x * 10 },
	{"mbar", "kPa"}:  func(x float64) float64 { return x / 10 },
	{"kPa", "inHg"}:  func(x float64) float64 { return x * 0.295299830714 },
	{"inHg", "kPa"}:  func(x float64) float64 { return x * 3.38638866667 },

	// Speed
	{"meter_per_second", "mile_per_hour"}: func(x float64) float64 { return x * 2.23693629 },
	{"mile_per_hour", "meter_per_second"}: func(x float64) float64 { return x / 2.23693629 },
	{"km_per_hour", "mile_per_hour"}:      func(x float64) float64 { return x * 0.621371192 },
	{"mile_per_hour", "km_per_hour"}:      func(x float64) float64 { return x / 0.621371192 },
	{"meter_per_second", "km_per_hour"}:   func(x float64) float64 { return x * 3.6 },
	{"km_per_hour", "meter_per_second"}:   func(x float64) float64 { return x / 3.6 },
	{"knot", "mile_per_hour"}:             func(x float64) float64 { return x * 1.15077945 },
	{"mile_per_hour", "knot"}:             func(x float64) float64 { return x / 1.15077945 },
	{"knot", "km_per_hour"}:               func(x float64) float64 { return x * 1.852 },
	{"km_per_hour", "knot"}:               func(x float64) float64 { return x / 1.852 },
	{"knot", "meter_per_second"}:          func(x float64) float64 { return x * 0.514444444 },
	{"meter_per_second", "knot"}:          func(x float64) float64 { return x / 0.514444444 },

	// Rain
	{"mm", "inch"}: func(x float64) float64 { return x / 25.4 },
	{"inch", "mm"}: func(x float64) float64 { return x * 25.4 },
	{"cm", "inch"}: func(x float64) float64 { return x / 2.54 },
	{"inch", "cm"}: func(x float64) float64 { return x * 2.54 },
	{"mm", "cm"}:   func(x float64) float64 { return x / 10 },
	{"cm", "mm"}:   func(x float64) float64 { return x * 10 },

	// Rain rate
	{"mm_per_hour", "inch_per_hour"}: func(x float64) float64 { return x / 25.4 },
	{"inch_per_hour", "mm_per_hour"}: func(x float64) float64 { return x * 25.4 },
	{"cm_per_hour", "inch_per_hour"}: func(x float64) float64 { return x / 2.54 },
	{"inch_per_hour", "cm_per_hour"}: func(x float64) float64 { return x * 2.54 },
	{"mm_per_hour", "cm_per_hour"}:   func(x float64) float64 { return x / 10 },
	{"cm_per_hour", "mm_per_hour"}:   func(x float64) float64 { return x * 10 },

	// Distance and altitude
	{"km", "mile"}:    func(x float64) float64 { return x * 0.621371192 },
	{"mile", "km"}:    func(x float64) float64 { return x / 0.621371192 },
	{"meter", "foot"}: func(x float64) float64 { return x / 0.3048 },
	{"foot", "meter"}: func(x float64) float64 { return x * 0.3048 },
}

// Convert returns q expressed in unit to. A nil magnitude stays nil.
func Convert(q Quantity, to Unit) (Quantity, error) {
	if q.Unit == to {
		return q, nil
	}
	fn, ok := conversions[unitPair{q.Unit, to}]
	if !ok {
		return Quantity{}, fmt.Errorf("cannot convert from %q to %q", q.Unit, to)
	}
	out := Quantity{Unit: to, Group: q.Group}
	if q.Magnitude != nil {
		v := fn(*q.Magnitude)
		out.Magnitude = &v
	}
	return out, nil
}
