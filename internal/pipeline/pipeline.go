package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer assesses a batch of raw events as one scoring cycle.
type Transformer interface {
	TransformBatch(ctx context.Context, raws []domain.RawEvent) Cycle
}

// BatchLoader writes risk bundles to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, bundles []domain.RiskBundle) error
}

// Pipeline orchestrates the extract-assess-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has completed a scoring cycle,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a scoring cycle yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one scoring cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	loaded, ok := p.assessAndLoad(ctx, rawBatch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// assessAndLoad assesses the batch, loads the bundles that succeeded, and
// commits offsets. Failed messages are logged, counted by error kind, and
// committed so they are not redelivered. Returns the number of loaded
// bundles and false if the pipeline should stop.
func (p *Pipeline) assessAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	cycle := p.transformer.TransformBatch(ctx, rawBatch)

	bundles := make([]domain.RiskBundle, 0, len(cycle.Outcomes))
	successfulRaws := make([]domain.RawEvent, 0, len(cycle.Outcomes))

	for _, o := range cycle.Outcomes {
		if o.Err != nil {
			if ctx.Err() != nil {
				return 0, false
			}
			kind := domain.ErrorKind(o.Err)
			p.logger.Warn("assessment failed, skipping message",
				"error", o.Err,
				"error_kind", kind,
				"cycle_id", cycle.ID,
				"topic", o.Raw.Topic,
				"partition", o.Raw.Partition,
				"offset", o.Raw.Offset,
			)
			p.metrics.AssessmentErrors.WithLabelValues(kind).Inc()
			p.commitOffset(ctx, o.Raw)
			continue
		}
		bundles = append(bundles, o.Bundle)
		successfulRaws = append(successfulRaws, o.Raw)
		p.observe(o.Bundle)
	}

	if len(bundles) == 0 {
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, bundles); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(bundles), "cycle_id", cycle.ID)
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.MessagesProduced.Add(float64(len(bundles)))

	for _, raw := range successfulRaws {
		p.commitOffset(ctx, raw)
	}

	p.logger.Info("scoring cycle complete",
		"cycle_id", cycle.ID,
		"snapshot_version", cycle.SnapshotVersion,
		"assessed", len(bundles),
		"failed", len(cycle.Outcomes)-len(bundles),
	)
	return len(bundles), true
}

func (p *Pipeline) observe(b domain.RiskBundle) {
	p.metrics.TierAssessments.WithLabelValues(string(b.Tier.Tier)).Inc()
	for _, s := range b.Scores {
		p.metrics.HazardScores.WithLabelValues(string(s.Hazard)).Observe(s.Score)
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
