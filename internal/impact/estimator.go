// Package impact projects cost, beneficiaries, risk reduction and return on
// investment of recommended actions. All money is decimal.
package impact

import (
	"github.com/shopspring/decimal"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
)

// centavos is the rounding scale of currency amounts.
const centavos = 2

var hundred = decimal.NewFromInt(100)

// Estimator produces an impact estimate for an action at a classified
// location.
type Estimator interface {
	Estimate(snap *rules.Snapshot, action domain.RecommendedAction, tier domain.RiskTier) (domain.ImpactEstimate, error)
}

// Calculator is the uncached Estimator.
type Calculator struct{}

// Estimate implements Estimator.
func (Calculator) Estimate(snap *rules.Snapshot, action domain.RecommendedAction, tier domain.RiskTier) (domain.ImpactEstimate, error) {
	return Estimate(snap, action, tier)
}

// Estimate computes:
//
//	beneficiaries = floor(population × tier population fraction)
//	cost          = base cost × tier cost multiplier × location cost index
//	risk reduction = effectiveness clamped to [0,100]
//	benefit       = beneficiaries × risk reduction / 100 × value per avoided unit
//
// Base cost and effectiveness come from the snapshot catalog entry for the
// action ID. Cost and benefit are rounded half-even to centavos. ROI is
// derived by the estimate itself.
func Estimate(snap *rules.Snapshot, action domain.RecommendedAction, tier domain.RiskTier) (domain.ImpactEstimate, error) {
	missing := func(param string) error {
		return &domain.MissingParameterError{Location: tier.LocationID, Action: action.ID, Parameter: param}
	}

	params, ok := snap.Location(tier.LocationID)
	if !ok {
		return domain.ImpactEstimate{}, missing("location")
	}
	action, ok = snap.Action(action.ID)
	if !ok {
		return domain.ImpactEstimate{}, missing("action")
	}
	model := snap.CostModel()
	ti, ok := model.Tiers[tier.Tier]
	if !ok {
		return domain.ImpactEstimate{}, missing("tier." + string(tier.Tier))
	}

	beneficiaries := decimal.NewFromInt(params.Population).Mul(ti.PopulationFraction).Floor().IntPart()
	cost := action.BaseCost.Mul(ti.CostMultiplier).Mul(params.CostIndex).RoundBank(centavos)
	reduction := clampPercent(action.Effectiveness)
	benefit := decimal.NewFromInt(beneficiaries).
		Mul(reduction).
		Mul(model.ValuePerAvoidedUnit).
		Div(hundred).
		RoundBank(centavos)

	return domain.ImpactEstimate{
		ActionID:      action.ID,
		LocationID:    tier.LocationID,
		Tier:          tier.Tier,
		Cost:          cost,
		Beneficiaries: beneficiaries,
		RiskReduction: reduction,
		Benefit:       benefit,
		Currency:      model.Currency,
	}, nil
}

func clampPercent(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}
