// Package classify turns a location's hazard scores into a single risk tier.
package classify

import (
	"fmt"
	"math"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
)

// Classify picks the dominant hazard (highest score, ties broken by severity
// priority) and maps its score to a tier through the snapshot thresholds.
// All scores must belong to one location and lie in [0,1].
func Classify(snap *rules.Snapshot, scores []domain.HazardScore) (domain.RiskTier, error) {
	if len(scores) == 0 {
		return domain.RiskTier{}, &domain.EmptyInputError{Operation: "classify"}
	}
	for _, s := range scores {
		if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1 {
			return domain.RiskTier{}, &domain.InsufficientDataError{
				Location: s.LocationID,
				Factor:   "score",
				Reason:   fmt.Sprintf("%s score %v is outside [0,1]", s.Hazard, s.Score),
			}
		}
	}

	dominant := scores[0]
	window := scores[0].Window
	for _, s := range scores[1:] {
		if s.LocationID != dominant.LocationID {
			return domain.RiskTier{}, domain.ErrLocationMismatch
		}
		window = window.Union(s.Window)
		if outranks(snap, s, dominant) {
			dominant = s
		}
	}

	return domain.RiskTier{
		LocationID: dominant.LocationID,
		Tier:       snap.Thresholds().TierFor(dominant.Score),
		Dominant:   dominant.Hazard,
		Score:      dominant.Score,
		Window:     window,
	}, nil
}

func outranks(snap *rules.Snapshot, a, b domain.HazardScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return snap.Priority(a.Hazard) > snap.Priority(b.Hazard)
}
