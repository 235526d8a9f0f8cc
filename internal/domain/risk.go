package domain

import (
	"fmt"
	"strings"
	"time"
)

// ForecastWindow is the time span a score or tier applies to.
type ForecastWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Union returns the smallest window covering both w and o. Zero windows are
// ignored.
func (w ForecastWindow) Union(o ForecastWindow) ForecastWindow {
	if w.Start.IsZero() && w.End.IsZero() {
		return o
	}
	if o.Start.IsZero() && o.End.IsZero() {
		return w
	}
	out := w
	if o.Start.Before(out.Start) {
		out.Start = o.Start
	}
	if o.End.After(out.End) {
		out.End = o.End
	}
	return out
}

// HazardScore is the normalized H_score of one hazard type for one location.
// Factors maps each factor name to its weighted contribution.
type HazardScore struct {
	LocationID string             `json:"location_id"`
	Hazard     HazardType         `json:"hazard"`
	Score      float64            `json:"score"`
	Factors    map[string]float64 `json:"factors"`
	Window     ForecastWindow     `json:"window"`
}

// Tier is a discrete risk severity.
type Tier string

const (
	TierLow      Tier = "low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// Tiers lists every tier from least to most severe.
var Tiers = []Tier{TierLow, TierModerate, TierHigh, TierCritical}

// Rank orders tiers by severity: low=0 through critical=3. Unknown tiers
// rank -1.
func (t Tier) Rank() int {
	for i, v := range Tiers {
		if v == t {
			return i
		}
	}
	return -1
}

// ParseTier validates a tier name. Matching is case-insensitive.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t.Rank() < 0 {
		return "", fmt.Errorf("unknown risk tier %q", s)
	}
	return t, nil
}

// RiskTier is the classified risk of a location, driven by its dominant
// hazard.
type RiskTier struct {
	LocationID string         `json:"location_id"`
	Tier       Tier           `json:"tier"`
	Dominant   HazardType     `json:"dominant_hazard"`
	Score      float64        `json:"score"`
	Window     ForecastWindow `json:"window"`
}
