// Package rules holds the immutable, versioned configuration every scoring
// cycle runs against: hazard factor weights, tier thresholds, severity
// priorities, the action catalog, the impact cost model and the per-location
// parameter table.
//
// A Snapshot is built once from YAML, validated eagerly, and never mutated.
// Reloads build a new Snapshot and swap it into a Store atomically, so a
// computation holding a Snapshot sees one consistent version throughout.
package rules

import (
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
)

// WeightTolerance is the allowed deviation of a hazard's weight sum from 1.0.
const WeightTolerance = 1e-6

// Normalization selects how a factor is rescaled to [0,1].
type Normalization string

const (
	NormalizeLinear  Normalization = "linear"
	NormalizeSigmoid Normalization = "sigmoid"
)

// Factor is one weighted input to a hazard score.
type Factor struct {
	Name        string
	Measurement string
	Unit        string
	Weight      float64
	Kind        Normalization
	Min         float64
	Max         float64
	Midpoint    float64
	Steepness   float64
	Invert      bool
}

// Normalize rescales v (already in the factor's unit) to [0,1]. The mapping
// is monotonic: non-decreasing, or non-increasing when Invert is set.
func (f Factor) Normalize(v float64) float64 {
	var s float64
	switch f.Kind {
	case NormalizeSigmoid:
		s = 1 / (1 + math.Exp(-f.Steepness*(v-f.Midpoint)))
	default:
		s = (v - f.Min) / (f.Max - f.Min)
	}
	s = clamp01(s)
	if f.Invert {
		return 1 - s
	}
	return s
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// HazardRule lists the factors that make up one hazard's score.
type HazardRule struct {
	Hazard  domain.HazardType
	Factors []Factor
}

// Thresholds are the lower bounds of the moderate, high and critical tiers.
// Low covers [0, Moderate) and critical covers [Critical, 1].
type Thresholds struct {
	Moderate float64 `json:"moderate"`
	High     float64 `json:"high"`
	Critical float64 `json:"critical"`
}

// TierFor maps a score in [0,1] to exactly one tier.
func (t Thresholds) TierFor(score float64) domain.Tier {
	switch {
	case score >= t.Critical:
		return domain.TierCritical
	case score >= t.High:
		return domain.TierHigh
	case score >= t.Moderate:
		return domain.TierModerate
	default:
		return domain.TierLow
	}
}

// TierImpact holds the cost-model entries for one tier.
type TierImpact struct {
	PopulationFraction decimal.Decimal
	CostMultiplier     decimal.Decimal
}

// CostModel converts tiers and actions into money.
type CostModel struct {
	Currency            string
	ValuePerAvoidedUnit decimal.Decimal
	MaxActions          int
	Tiers               map[domain.Tier]TierImpact
}

// Snapshot is one immutable configuration version. Accessors return copies.
type Snapshot struct {
	version  string
	sequence uint64
	digest   string
	loadedAt time.Time

	hazards     map[domain.HazardType]HazardRule
	hazardOrder []domain.HazardType
	thresholds  Thresholds
	priority    map[domain.HazardType]int
	actions     map[string]domain.RecommendedAction
	actionOrder []string
	cost        CostModel
	locations   map[string]domain.LocationParameters
}

// Version identifies the snapshot as "<sequence>-<content digest>".
func (s *Snapshot) Version() string { return s.version }

// Sequence is the load counter of the store that produced the snapshot.
func (s *Snapshot) Sequence() uint64 { return s.sequence }

// Digest is the SHA-256 prefix of the source files.
func (s *Snapshot) Digest() string { return s.digest }

// LoadedAt is when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// HazardTypes returns the configured hazard types in priority order.
func (s *Snapshot) HazardTypes() []domain.HazardType {
	return slices.Clone(s.hazardOrder)
}

// Hazard returns the rule for a hazard type.
func (s *Snapshot) Hazard(h domain.HazardType) (HazardRule, bool) {
	r, ok := s.hazards[h]
	if !ok {
		return HazardRule{}, false
	}
	return HazardRule{Hazard: r.Hazard, Factors: slices.Clone(r.Factors)}, true
}

// Thresholds returns the tier cut points.
func (s *Snapshot) Thresholds() Thresholds { return s.thresholds }

// Priority returns the severity priority of a hazard type. Larger wins ties.
func (s *Snapshot) Priority(h domain.HazardType) int { return s.priority[h] }

// Action returns a catalog entry by id.
func (s *Snapshot) Action(id string) (domain.RecommendedAction, bool) {
	a, ok := s.actions[id]
	if !ok {
		return domain.RecommendedAction{}, false
	}
	return cloneAction(a), true
}

// Actions returns the catalog in file order.
func (s *Snapshot) Actions() []domain.RecommendedAction {
	out := make([]domain.RecommendedAction, 0, len(s.actionOrder))
	for _, id := range s.actionOrder {
		out = append(out, cloneAction(s.actions[id]))
	}
	return out
}

// CostModel returns the impact cost model.
func (s *Snapshot) CostModel() CostModel {
	tiers := make(map[domain.Tier]TierImpact, len(s.cost.Tiers))
	for k, v := range s.cost.Tiers {
		tiers[k] = v
	}
	c := s.cost
	c.Tiers = tiers
	return c
}

// Location returns the parameter record of a location.
func (s *Snapshot) Location(id string) (domain.LocationParameters, bool) {
	p, ok := s.locations[id]
	return p, ok
}

// LocationIDs returns every location in the parameter table, sorted.
func (s *Snapshot) LocationIDs() []string {
	ids := make([]string, 0, len(s.locations))
	for id := range s.locations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Weights returns factor weights per hazard, keyed by factor name.
func (s *Snapshot) Weights() map[domain.HazardType]map[string]float64 {
	out := make(map[domain.HazardType]map[string]float64, len(s.hazards))
	for h, r := range s.hazards {
		w := make(map[string]float64, len(r.Factors))
		for _, f := range r.Factors {
			w[f.Name] = f.Weight
		}
		out[h] = w
	}
	return out
}

func cloneAction(a domain.RecommendedAction) domain.RecommendedAction {
	a.Tiers = slices.Clone(a.Tiers)
	a.Hazards = slices.Clone(a.Hazards)
	return a
}
