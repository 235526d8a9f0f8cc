package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RiskBundle is the three-tier result for one location: hazard scores, the
// classified risk tier, and the impact of each recommended action.
type RiskBundle struct {
	LocationID      string              `json:"location_id"`
	Scores          []HazardScore       `json:"scores"`
	Tier            RiskTier            `json:"risk"`
	Actions         []RecommendedAction `json:"actions"`
	Impacts         []ImpactEstimate    `json:"impacts"`
	SnapshotVersion string              `json:"snapshot_version"`
	CycleID         string              `json:"cycle_id,omitempty"`
	AssessedAt      time.Time           `json:"assessed_at"`
}

// Score returns the score for a hazard type, if present.
func (b RiskBundle) Score(h HazardType) (HazardScore, bool) {
	for _, s := range b.Scores {
		if s.Hazard == h {
			return s, true
		}
	}
	return HazardScore{}, false
}

// ForecastDate is the UTC day the forecast window starts on, as YYYY-MM-DD.
func (b RiskBundle) ForecastDate() string {
	return b.Tier.Window.Start.UTC().Format(time.DateOnly)
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// SerializeBundle marshals a bundle into an OutputEvent keyed by location.
func SerializeBundle(b RiskBundle) (OutputEvent, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize risk bundle: %w", err)
	}
	return OutputEvent{
		Key:   []byte(b.LocationID),
		Value: data,
		Headers: map[string]string{
			"tier":             string(b.Tier.Tier),
			"dominant_hazard":  string(b.Tier.Dominant),
			"snapshot_version": b.SnapshotVersion,
			"cycle_id":         b.CycleID,
			"assessed_at":      b.AssessedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}
