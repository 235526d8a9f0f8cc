// Package assess runs the three stages (hazard scoring, risk classification,
// impact estimation) for a location against one rules snapshot.
package assess

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hazard-risk-service/internal/classify"
	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/hazard"
	"github.com/couchcryptid/hazard-risk-service/internal/impact"
	"github.com/couchcryptid/hazard-risk-service/internal/recommend"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
)

// Assessor produces risk bundles. It holds no per-call state and is safe for
// concurrent use.
type Assessor struct {
	source    recommend.Source
	estimator impact.Estimator
	workers   int
}

// New creates an Assessor. workers bounds AssessBatch parallelism.
func New(source recommend.Source, estimator impact.Estimator, workers int) *Assessor {
	if workers < 1 {
		workers = 1
	}
	return &Assessor{source: source, estimator: estimator, workers: workers}
}

// Assess scores, classifies and estimates one location. Any stage error
// fails the whole bundle.
func (a *Assessor) Assess(ctx context.Context, snap *rules.Snapshot, sig domain.LocationSignal) (domain.RiskBundle, error) {
	scores, err := hazard.ScoreAll(snap, sig)
	if err != nil {
		return domain.RiskBundle{}, fmt.Errorf("score location %q: %w", sig.LocationID, err)
	}

	tier, err := classify.Classify(snap, scores)
	if err != nil {
		return domain.RiskBundle{}, fmt.Errorf("classify location %q: %w", sig.LocationID, err)
	}

	actions, err := a.source.Recommend(ctx, snap, tier)
	if err != nil {
		return domain.RiskBundle{}, fmt.Errorf("recommend actions for %q: %w", sig.LocationID, err)
	}

	impacts := make([]domain.ImpactEstimate, 0, len(actions))
	for _, action := range actions {
		est, err := a.estimator.Estimate(snap, action, tier)
		if err != nil {
			return domain.RiskBundle{}, fmt.Errorf("estimate impact for %q: %w", sig.LocationID, err)
		}
		impacts = append(impacts, est)
	}

	return domain.RiskBundle{
		LocationID:      sig.LocationID,
		Scores:          scores,
		Tier:            tier,
		Actions:         actions,
		Impacts:         impacts,
		SnapshotVersion: snap.Version(),
		AssessedAt:      domain.Now().UTC(),
	}, nil
}

// Result is the outcome of one signal in a batch.
type Result struct {
	Bundle domain.RiskBundle
	Err    error
}

// AssessBatch assesses every signal against the same snapshot, in parallel.
// Results are returned in input order; one failure never affects another
// location.
func (a *Assessor) AssessBatch(ctx context.Context, snap *rules.Snapshot, sigs []domain.LocationSignal) []Result {
	results := make([]Result, len(sigs))

	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, sig := range sigs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Err: err}
				return nil
			}
			b, err := a.Assess(ctx, snap, sig)
			results[i] = Result{Bundle: b, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// TopN returns the n bundles with the highest dominant score, most severe
// first. Ties are ordered by location id. n <= 0 returns every bundle.
func TopN(bundles []domain.RiskBundle, n int) []domain.RiskBundle {
	sorted := slices.Clone(bundles)
	slices.SortFunc(sorted, func(a, b domain.RiskBundle) int {
		if c := cmp.Compare(b.Tier.Score, a.Tier.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.LocationID, b.LocationID)
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
