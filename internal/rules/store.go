package rules

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-risk-service/internal/observability"
)

// Reload outcomes, used as metric labels.
const (
	ReloadApplied   = "applied"
	ReloadUnchanged = "unchanged"
	ReloadRejected  = "rejected"
)

// Store holds the active snapshot. Readers call Current and keep the
// returned pointer for the duration of a computation; Reload swaps in a new
// snapshot without touching the old one.
type Store struct {
	rulesPath  string
	paramsPath string
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	current atomic.Pointer[Snapshot]
	seq     atomic.Uint64

	mu          sync.Mutex // serializes reloads and subscriber registration
	subscribers []func(*Snapshot)
}

// NewStore loads the initial snapshot. A configuration error here is fatal
// to the caller.
func NewStore(rulesPath, paramsPath string, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	s := &Store{
		rulesPath:  rulesPath,
		paramsPath: paramsPath,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
	snap, err := Load(rulesPath, paramsPath, s.seq.Add(1), clock.Now())
	if err != nil {
		return nil, err
	}
	s.swap(snap)
	logger.Info("rules snapshot loaded",
		"version", snap.Version(),
		"hazards", len(snap.HazardTypes()),
		"actions", len(snap.Actions()),
		"locations", len(snap.LocationIDs()),
	)
	return s, nil
}

// Current returns the active snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Subscribe registers fn to be called with every newly applied snapshot.
func (s *Store) Subscribe(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Reload rebuilds the snapshot from disk. When the files are unchanged the
// active snapshot is kept and changed is false. An invalid configuration is
// rejected and the prior snapshot stays active.
func (s *Store) Reload() (snap *Snapshot, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	rulesData, paramsData, err := readFiles(s.rulesPath, s.paramsPath)
	if err != nil {
		s.reject(prev, err)
		return prev, false, err
	}
	if Digest(rulesData, paramsData) == prev.Digest() {
		s.metrics.RulesReloads.WithLabelValues(ReloadUnchanged).Inc()
		return prev, false, nil
	}

	next, err := Build(rulesData, paramsData, s.seq.Add(1), s.clock.Now())
	if err != nil {
		s.reject(prev, err)
		return prev, false, err
	}

	s.swap(next)
	s.metrics.RulesReloads.WithLabelValues(ReloadApplied).Inc()
	s.logger.Info("rules snapshot reloaded", "previous_version", prev.Version(), "version", next.Version())
	for _, fn := range s.subscribers {
		fn(next)
	}
	return next, true, nil
}

func (s *Store) reject(prev *Snapshot, err error) {
	s.metrics.RulesReloads.WithLabelValues(ReloadRejected).Inc()
	s.logger.Error("rules reload rejected, keeping active snapshot",
		"error", err, "active_version", prev.Version())
}

func (s *Store) swap(snap *Snapshot) {
	s.current.Store(snap)
	s.metrics.RulesSnapshotSeq.Set(float64(snap.Sequence()))
}

// Watch reloads on every value received from trigger (typically SIGHUP) and,
// when interval is positive, on a polling ticker. It returns when ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration, trigger <-chan os.Signal) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := s.clock.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-trigger:
			s.logger.Info("rules reload requested", "signal", sig.String())
			_, _, _ = s.Reload()
		case <-tick:
			_, _, _ = s.Reload()
		}
	}
}
