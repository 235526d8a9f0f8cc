package domain

import (
	"fmt"
	"strings"
)

// unitDimension groups units that can be converted into each other.
var unitDimension = map[string]string{
	"mm": "length", "cm": "length", "in": "length",
	"m": "elevation", "ft": "elevation",
	"c": "temperature", "f": "temperature", "k": "temperature",
	"fraction": "ratio", "percent": "ratio", "m3/m3": "ratio",
	"mm/day": "rate", "in/day": "rate",
	"m3/s": "discharge",
	"index": "index",
}

// unitAliases maps accepted spellings onto canonical unit names.
var unitAliases = map[string]string{
	"%": "percent", "pct": "percent",
	"°c": "c", "celsius": "c", "degc": "c",
	"°f": "f", "fahrenheit": "f", "degf": "f",
	"kelvin": "k",
	"meter": "m", "meters": "m", "metre": "m",
	"feet": "ft", "foot": "ft",
	"inch": "in", "inches": "in",
	"ratio": "fraction",
	"mm/d": "mm/day",
}

// NormalizeUnit returns the canonical lowercase spelling of a unit.
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if alias, ok := unitAliases[u]; ok {
		return alias
	}
	return u
}

// KnownUnit reports whether the unit can take part in conversions.
func KnownUnit(unit string) bool {
	_, ok := unitDimension[NormalizeUnit(unit)]
	return ok
}

// ConvertUnit converts v from one unit to another of the same dimension.
func ConvertUnit(v float64, from, to string) (float64, error) {
	from, to = NormalizeUnit(from), NormalizeUnit(to)
	if from == to {
		return v, nil
	}
	df, okFrom := unitDimension[from]
	dt, okTo := unitDimension[to]
	if !okFrom || !okTo || df != dt {
		return 0, fmt.Errorf("cannot convert %s to %s", from, to)
	}

	switch df {
	case "temperature":
		return fromKelvin(toKelvin(v, from), to), nil
	default:
		return v * scaleToBase[from] / scaleToBase[to], nil
	}
}

// scaleToBase expresses linear units in their dimension's base unit
// (mm, m, fraction, mm/day).
var scaleToBase = map[string]float64{
	"mm": 1, "cm": 10, "in": 25.4,
	"m": 1, "ft": 0.3048,
	"fraction": 1, "m3/m3": 1, "percent": 0.01,
	"mm/day": 1, "in/day": 25.4,
}

func toKelvin(v float64, unit string) float64 {
	switch unit {
	case "c":
		return v + 273.15
	case "f":
		return (v-32)*5/9 + 273.15
	default:
		return v
	}
}

func fromKelvin(v float64, unit string) float64 {
	switch unit {
	case "c":
		return v - 273.15
	case "f":
		return (v-273.15)*9/5 + 32
	default:
		return v
	}
}
