package pipeline

import (
	"context"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
)

// FanOutLoader loads a batch into each loader in order and stops at the
// first failure. Put the durable sink first so the in-memory view never
// runs ahead of what was published.
type FanOutLoader []BatchLoader

func (f FanOutLoader) LoadBatch(ctx context.Context, bundles []domain.RiskBundle) error {
	for _, l := range f {
		if err := l.LoadBatch(ctx, bundles); err != nil {
			return err
		}
	}
	return nil
}
