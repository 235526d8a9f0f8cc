// Package recommend selects catalog actions for a classified location.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
)

// ErrInvalidSuggestion is returned when an advisor names an action that is
// not an applicable catalog entry.
var ErrInvalidSuggestion = errors.New("advisor suggested an inapplicable action")

// Source recommends actions for a risk tier.
type Source interface {
	Recommend(ctx context.Context, snap *rules.Snapshot, tier domain.RiskTier) ([]domain.RecommendedAction, error)
}

// Candidates returns the catalog actions applicable to the tier and its
// dominant hazard, in catalog order.
func Candidates(snap *rules.Snapshot, tier domain.RiskTier) []domain.RecommendedAction {
	var out []domain.RecommendedAction
	for _, a := range snap.Actions() {
		if a.AppliesTo(tier.Tier, tier.Dominant) {
			out = append(out, a)
		}
	}
	return out
}

// RuleBasedSource ranks applicable actions by effectiveness, preferring
// short-term actions on ties, and keeps the top max_actions.
type RuleBasedSource struct{}

// Recommend implements Source.
func (RuleBasedSource) Recommend(_ context.Context, snap *rules.Snapshot, tier domain.RiskTier) ([]domain.RecommendedAction, error) {
	actions := Candidates(snap, tier)
	slices.SortStableFunc(actions, func(a, b domain.RecommendedAction) int {
		if c := b.Effectiveness.Cmp(a.Effectiveness); c != 0 {
			return c
		}
		if a.Term != b.Term {
			if a.Term == domain.TermShort {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return truncate(actions, snap.CostModel().MaxActions), nil
}

// AdviceRequest is what an Advisor ranks.
type AdviceRequest struct {
	Risk       domain.RiskTier            `json:"risk"`
	Candidates []domain.RecommendedAction `json:"candidates"`
	MaxActions int                        `json:"max_actions"`
}

// Advisor is an external ranking collaborator. It returns action ids in
// preference order.
type Advisor interface {
	Rank(ctx context.Context, req AdviceRequest) ([]string, error)
}

// AdvisoryModelSource delegates ranking to an Advisor. Every suggested id
// must be one of the applicable candidates; anything else is an error.
type AdvisoryModelSource struct {
	advisor Advisor
}

// NewAdvisoryModelSource creates a Source backed by an advisor.
func NewAdvisoryModelSource(advisor Advisor) *AdvisoryModelSource {
	return &AdvisoryModelSource{advisor: advisor}
}

// Recommend implements Source.
func (s *AdvisoryModelSource) Recommend(ctx context.Context, snap *rules.Snapshot, tier domain.RiskTier) ([]domain.RecommendedAction, error) {
	candidates := Candidates(snap, tier)
	if len(candidates) == 0 {
		return nil, nil
	}
	maxActions := snap.CostModel().MaxActions

	ids, err := s.advisor.Rank(ctx, AdviceRequest{Risk: tier, Candidates: candidates, MaxActions: maxActions})
	if err != nil {
		return nil, fmt.Errorf("rank actions: %w", err)
	}

	byID := make(map[string]domain.RecommendedAction, len(candidates))
	for _, a := range candidates {
		byID[a.ID] = a
	}
	out := make([]domain.RecommendedAction, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q for %s/%s", ErrInvalidSuggestion, id, tier.Tier, tier.Dominant)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, a)
	}
	return truncate(out, maxActions), nil
}

func truncate(actions []domain.RecommendedAction, n int) []domain.RecommendedAction {
	if n > 0 && len(actions) > n {
		return actions[:n]
	}
	return actions
}
