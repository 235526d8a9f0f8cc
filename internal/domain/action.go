package domain

import (
	"encoding/json"
	"slices"

	"github.com/shopspring/decimal"
)

// Term distinguishes immediate responses from structural investments.
type Term string

const (
	TermShort Term = "short_term"
	TermLong  Term = "long_term"
)

// RecommendedAction is a catalog entry describing a municipal action.
type RecommendedAction struct {
	ID            string          `json:"id"`
	Tiers         []Tier          `json:"tiers"`
	Hazards       []HazardType    `json:"hazards,omitempty"`
	Term          Term            `json:"term"`
	Description   string          `json:"description"`
	BaseCost      decimal.Decimal `json:"base_cost"`
	Effectiveness decimal.Decimal `json:"effectiveness"`
}

// AppliesTo reports whether the action is valid for the tier and hazard.
// An action with no hazards listed applies to every hazard.
func (a RecommendedAction) AppliesTo(tier Tier, hazard HazardType) bool {
	if !slices.Contains(a.Tiers, tier) {
		return false
	}
	return len(a.Hazards) == 0 || slices.Contains(a.Hazards, hazard)
}

// LocationParameters is the socioeconomic record of a location supplied by
// the statistics collaborator.
type LocationParameters struct {
	LocationID string          `json:"location_id"`
	Name       string          `json:"name,omitempty"`
	Population int64           `json:"population"`
	CostIndex  decimal.Decimal `json:"cost_index"`
}

// ImpactEstimate projects the cost and benefit of an action at a location.
// ROI is always derived from Cost and Benefit.
type ImpactEstimate struct {
	ActionID      string          `json:"action_id"`
	LocationID    string          `json:"location_id"`
	Tier          Tier            `json:"tier"`
	Cost          decimal.Decimal `json:"cost"`
	Beneficiaries int64           `json:"beneficiaries"`
	RiskReduction decimal.Decimal `json:"risk_reduction_pct"`
	Benefit       decimal.Decimal `json:"benefit"`
	Currency      string          `json:"currency"`
}

// ROI returns (benefit - cost) / cost. A non-positive cost yields zero.
func (e ImpactEstimate) ROI() decimal.Decimal {
	if !e.Cost.IsPositive() {
		return decimal.Zero
	}
	return e.Benefit.Sub(e.Cost).DivRound(e.Cost, 4)
}

// MarshalJSON adds the derived roi field.
func (e ImpactEstimate) MarshalJSON() ([]byte, error) {
	type plain ImpactEstimate
	return json.Marshal(struct {
		plain
		ROI decimal.Decimal `json:"roi"`
	}{plain: plain(e), ROI: e.ROI()})
}
