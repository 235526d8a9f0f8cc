// Package rulestest builds small rules snapshots for tests in other packages.
package rulestest

import (
	"testing"
	"time"

	"github.com/couchcryptid/hazard-risk-service/internal/rules"
)

// LoadedAt is the fixed build time of fixture snapshots.
var LoadedAt = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// Rules scores flood from 24h precipitation (0-100 mm), soil saturation
// (0-1) and inverted elevation (0-50 m) weighted .5/.4/.1.
const Rules = `
hazards:
  flood:
    factors:
      - {name: precipitation_24h, unit: mm, normalize: linear, min: 0, max: 100, weight: 0.5}
      - {name: soil_saturation, unit: fraction, normalize: linear, min: 0, max: 1, weight: 0.4}
      - {name: elevation, unit: m, normalize: linear, min: 0, max: 50, invert: true, weight: 0.1}
  heat:
    factors:
      - {name: temperature_max, unit: C, normalize: linear, min: 30, max: 42, weight: 0.6}
      - {name: relative_humidity, unit: fraction, normalize: linear, min: 0.3, max: 0.9, weight: 0.4}
  drought:
    factors:
      - {name: soil_dryness, measurement: soil_moisture, unit: fraction, normalize: linear, min: 0.10, max: 0.45, invert: true, weight: 0.5}
      - {name: evapotranspiration, unit: mm/day, normalize: linear, min: 1, max: 6, weight: 0.5}
thresholds: {moderate: 0.25, high: 0.5, critical: 0.75}
severity_priority: {flood: 3, heat: 2, drought: 1}
impact:
  currency: BRL
  value_per_avoided_unit: "3000.00"
  max_actions: 3
  tiers:
    low:      {population_fraction: "0.01", cost_multiplier: "1.00"}
    moderate: {population_fraction: "0.05", cost_multiplier: "1.10"}
    high:     {population_fraction: "0.10", cost_multiplier: "1.25"}
    critical: {population_fraction: "0.15", cost_multiplier: "1.50"}
actions:
  - {id: drain-clearing, description: Clear storm drains., term: short_term, tiers: [high, critical], hazards: [flood], base_cost: "140000.00", effectiveness: "37"}
  - {id: pumping-station-upgrade, description: Upgrade pumping stations., term: long_term, tiers: [high, critical], hazards: [flood], base_cost: "2500000.00", effectiveness: "60"}
  - {id: cooling-centers, description: Open cooling centers., term: short_term, tiers: [high, critical], hazards: [heat], base_cost: "45000.00", effectiveness: "25"}
  - {id: water-tanker-supply, description: Contract water tankers., term: short_term, tiers: [high, critical], hazards: [drought], base_cost: "80000.00", effectiveness: "30"}
  - {id: civil-defense-alert, description: Issue a civil defense alert., term: short_term, tiers: [moderate, high, critical], base_cost: "15000.00", effectiveness: "12"}
  - {id: community-preparedness, description: Preparedness workshops., term: long_term, tiers: [low, moderate], base_cost: "25000.00", effectiveness: "8"}
`

// Parameters lists three locations; canoas-centro has population 8000 and
// cost index 1.00.
const Parameters = `
locations:
  - {id: canoas-centro, name: Centro, population: 8000, cost_index: "1.00"}
  - {id: canoas-mathias-velho, name: Mathias Velho, population: 29000, cost_index: "0.85"}
  - {id: porto-alegre-sarandi, name: Sarandi, population: 92000, cost_index: "1.20"}
`

// New builds the fixture snapshot with sequence 1.
func New(tb testing.TB) *rules.Snapshot {
	tb.Helper()
	return NewWith(tb, Rules, Parameters, 1)
}

// NewWith builds a snapshot from the given documents and fails the test on
// any configuration error.
func NewWith(tb testing.TB, rulesYAML, paramsYAML string, seq uint64) *rules.Snapshot {
	tb.Helper()
	snap, err := rules.Build([]byte(rulesYAML), []byte(paramsYAML), seq, LoadedAt)
	if err != nil {
		tb.Fatalf("build fixture snapshot: %v", err)
	}
	return snap
}
