// Package hazard computes normalized hazard scores from location signals.
package hazard

import (
	"fmt"
	"math"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
)

// Score computes the H_score of one hazard type for one location: each
// configured factor is converted to its expected unit, normalized to [0,1]
// and weighted. The result is deterministic for a given snapshot and signal.
func Score(snap *rules.Snapshot, sig domain.LocationSignal, h domain.HazardType) (domain.HazardScore, error) {
	rule, ok := snap.Hazard(h)
	if !ok {
		return domain.HazardScore{}, &domain.ConfigurationError{
			Field:  "hazards." + string(h),
			Reason: "hazard type is not configured",
		}
	}

	factors := make(map[string]float64, len(rule.Factors))
	var total float64
	for _, f := range rule.Factors {
		v, err := factorValue(sig, h, f)
		if err != nil {
			return domain.HazardScore{}, err
		}
		contribution := f.Weight * f.Normalize(v)
		factors[f.Name] = contribution
		total += contribution
	}

	return domain.HazardScore{
		LocationID: sig.LocationID,
		Hazard:     h,
		Score:      math.Max(0, math.Min(1, total)),
		Factors:    factors,
		Window:     sig.Window(),
	}, nil
}

func factorValue(sig domain.LocationSignal, h domain.HazardType, f rules.Factor) (float64, error) {
	m, ok := sig.Measurement(f.Measurement)
	if !ok {
		return 0, &domain.InsufficientDataError{Location: sig.LocationID, Hazard: h, Factor: f.Measurement, Reason: "missing"}
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return 0, &domain.InsufficientDataError{Location: sig.LocationID, Hazard: h, Factor: f.Measurement, Reason: "not finite"}
	}
	unit := m.Unit
	if unit == "" {
		unit = f.Unit
	}
	v, err := domain.ConvertUnit(m.Value, unit, f.Unit)
	if err != nil {
		return 0, &domain.InsufficientDataError{
			Location: sig.LocationID,
			Hazard:   h,
			Factor:   f.Measurement,
			Reason:   fmt.Sprintf("unit %q is not compatible with %q", m.Unit, f.Unit),
		}
	}
	return v, nil
}

// ScoreAll scores every hazard the signal asks for, or every configured
// hazard when the signal names none, in snapshot priority order.
func ScoreAll(snap *rules.Snapshot, sig domain.LocationSignal) ([]domain.HazardScore, error) {
	requested := make(map[domain.HazardType]bool, len(sig.Hazards))
	for _, h := range sig.Hazards {
		if _, ok := snap.Hazard(h); !ok {
			return nil, &domain.ConfigurationError{Field: "hazards." + string(h), Reason: "hazard type is not configured"}
		}
		requested[h] = true
	}

	hazards := snap.HazardTypes()
	scores := make([]domain.HazardScore, 0, len(hazards))
	for _, h := range hazards {
		if len(requested) > 0 && !requested[h] {
			continue
		}
		s, err := Score(snap, sig, h)
		if err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, nil
}
