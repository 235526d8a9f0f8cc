package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/couchcryptid/hazard-risk-service/internal/assess"
	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
)

// Cycle is the result of assessing one batch.
type Cycle struct {
	ID              string
	SnapshotVersion string
	Outcomes        []Outcome
}

// Outcome pairs a raw message with its bundle or the error that prevented one.
type Outcome struct {
	Raw    domain.RawEvent
	Bundle domain.RiskBundle
	Err    error
}

// SnapshotSource supplies the rules snapshot a cycle is pinned to.
type SnapshotSource interface {
	Current() *rules.Snapshot
}

// BatchAssessor assesses signals against a single snapshot.
type BatchAssessor interface {
	AssessBatch(ctx context.Context, snap *rules.Snapshot, sigs []domain.LocationSignal) []assess.Result
}

// AssessTransformer implements Transformer. Every message of a batch is
// assessed against the snapshot current when the batch started, so a reload
// mid-cycle never mixes versions within one cycle.
type AssessTransformer struct {
	snapshots SnapshotSource
	assessor  BatchAssessor
	logger    *slog.Logger
	newID     func() string
}

// NewTransformer creates an AssessTransformer.
func NewTransformer(snapshots SnapshotSource, assessor BatchAssessor, logger *slog.Logger) *AssessTransformer {
	return &AssessTransformer{
		snapshots: snapshots,
		assessor:  assessor,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

func (t *AssessTransformer) TransformBatch(ctx context.Context, raws []domain.RawEvent) Cycle {
	snap := t.snapshots.Current()
	cycle := Cycle{
		ID:              t.newID(),
		SnapshotVersion: snap.Version(),
		Outcomes:        make([]Outcome, len(raws)),
	}

	sigs := make([]domain.LocationSignal, 0, len(raws))
	index := make([]int, 0, len(raws))
	for i, raw := range raws {
		cycle.Outcomes[i].Raw = raw
		sig, err := domain.ParseSignal(raw)
		if err != nil {
			cycle.Outcomes[i].Err = err
			continue
		}
		sigs = append(sigs, sig)
		index = append(index, i)
	}

	t.logger.Debug("scoring cycle started",
		"cycle_id", cycle.ID,
		"snapshot_version", cycle.SnapshotVersion,
		"signals", len(sigs),
	)

	for j, res := range t.assessor.AssessBatch(ctx, snap, sigs) {
		o := &cycle.Outcomes[index[j]]
		if res.Err != nil {
			o.Err = res.Err
			continue
		}
		o.Bundle = res.Bundle
		o.Bundle.CycleID = cycle.ID
	}
	return cycle
}
