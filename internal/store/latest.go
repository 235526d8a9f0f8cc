// Package store keeps recent risk bundles per location and forecast date for
// the read-only HTTP views.
package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/couchcryptid/hazard-risk-service/internal/assess"
	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/observability"
)

// DefaultRetainDays is the number of forecast dates kept by NewLatest.
const DefaultRetainDays = 16

// FactorRange bounds the weighted contribution of a named factor.
type FactorRange struct {
	Name string
	Min  *float64
	Max  *float64
}

func (r FactorRange) contains(v float64) bool {
	return (r.Min == nil || v >= *r.Min) && (r.Max == nil || v <= *r.Max)
}

// Filter narrows List and Top results. Zero values match everything. An
// empty Date selects the newest bundle of every location.
type Filter struct {
	Date     string
	Tiers    []domain.Tier
	Hazard   domain.HazardType
	MinScore *float64
	MaxScore *float64
	Factors  []FactorRange
}

func (f Filter) matches(b domain.RiskBundle) bool {
	if len(f.Tiers) > 0 && !slices.Contains(f.Tiers, b.Tier.Tier) {
		return false
	}
	score := b.Tier.Score
	if f.Hazard != "" {
		s, ok := b.Score(f.Hazard)
		if !ok {
			return false
		}
		score = s.Score
	}
	if f.MinScore != nil && score < *f.MinScore {
		return false
	}
	if f.MaxScore != nil && score > *f.MaxScore {
		return false
	}
	for _, r := range f.Factors {
		if !f.factorMatches(b, r) {
			return false
		}
	}
	return true
}

// factorMatches reports whether any hazard score carrying the factor, or the
// filtered hazard's score when Hazard is set, lies in the range.
func (f Filter) factorMatches(b domain.RiskBundle, r FactorRange) bool {
	for _, s := range b.Scores {
		if f.Hazard != "" && s.Hazard != f.Hazard {
			continue
		}
		if v, ok := s.Factors[r.Name]; ok && r.contains(v) {
			return true
		}
	}
	return false
}

// Latest holds bundles by forecast date and location. Within a date a bundle
// only replaces an older assessment of the same location; only the newest
// retainDays dates are kept.
type Latest struct {
	mu         sync.RWMutex
	byDate     map[string]map[string]domain.RiskBundle
	newest     map[string]domain.RiskBundle
	retainDays int
	metrics    *observability.Metrics
}

// NewLatest creates an empty store keeping DefaultRetainDays dates.
func NewLatest(metrics *observability.Metrics) *Latest {
	return NewLatestWithRetention(metrics, DefaultRetainDays)
}

// NewLatestWithRetention creates an empty store keeping the newest days
// forecast dates. days below 1 is treated as 1.
func NewLatestWithRetention(metrics *observability.Metrics, days int) *Latest {
	return &Latest{
		byDate:     make(map[string]map[string]domain.RiskBundle),
		newest:     make(map[string]domain.RiskBundle),
		retainDays: max(days, 1),
		metrics:    metrics,
	}
}

// Put records bundles, skipping any older than what is already held for the
// same location and date.
func (l *Latest) Put(bundles ...domain.RiskBundle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range bundles {
		date := b.ForecastDate()
		day, ok := l.byDate[date]
		if !ok {
			day = make(map[string]domain.RiskBundle)
			l.byDate[date] = day
		}
		if cur, ok := day[b.LocationID]; ok && cur.AssessedAt.After(b.AssessedAt) {
			continue
		}
		day[b.LocationID] = b
		if cur, ok := l.newest[b.LocationID]; !ok || supersedes(b, cur) {
			l.newest[b.LocationID] = b
		}
	}
	l.prune()
	l.metrics.LatestLocations.Set(float64(len(l.newest)))
}

// supersedes orders bundles of one location by forecast date, then by
// assessment time.
func supersedes(b, cur domain.RiskBundle) bool {
	if c := strings.Compare(b.ForecastDate(), cur.ForecastDate()); c != 0 {
		return c > 0
	}
	return !cur.AssessedAt.After(b.AssessedAt)
}

// prune drops the oldest dates beyond the retention and rebuilds the newest
// index for locations that lost their bundle. Callers hold the write lock.
func (l *Latest) prune() {
	if len(l.byDate) <= l.retainDays {
		return
	}
	dates := l.sortedDates()
	for _, d := range dates[:len(dates)-l.retainDays] {
		for id, b := range l.byDate[d] {
			if l.newest[id].ForecastDate() == b.ForecastDate() {
				delete(l.newest, id)
			}
		}
		delete(l.byDate, d)
	}
	for _, day := range l.byDate {
		for id, b := range day {
			if cur, ok := l.newest[id]; !ok || supersedes(b, cur) {
				l.newest[id] = b
			}
		}
	}
}

func (l *Latest) sortedDates() []string {
	dates := make([]string, 0, len(l.byDate))
	for d := range l.byDate {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	return dates
}

// LoadBatch records a published batch. It never fails.
func (l *Latest) LoadBatch(_ context.Context, bundles []domain.RiskBundle) error {
	l.Put(bundles...)
	return nil
}

// Get returns the newest bundle of a location.
func (l *Latest) Get(locationID string) (domain.RiskBundle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.newest[locationID]
	return b, ok
}

// GetOn returns the bundle of a location for one forecast date.
func (l *Latest) GetOn(date, locationID string) (domain.RiskBundle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.byDate[date][locationID]
	return b, ok
}

// Dates lists the held forecast dates, oldest first.
func (l *Latest) Dates() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedDates()
}

// List returns the bundles matching f, sorted by location id.
func (l *Latest) List(f Filter) []domain.RiskBundle {
	l.mu.RLock()
	src := l.newest
	if f.Date != "" {
		src = l.byDate[f.Date]
	}
	out := make([]domain.RiskBundle, 0, len(src))
	for _, b := range src {
		if f.matches(b) {
			out = append(out, b)
		}
	}
	l.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.RiskBundle) int {
		return strings.Compare(a.LocationID, b.LocationID)
	})
	return out
}

// Top returns the n most severe locations matching f.
func (l *Latest) Top(f Filter, n int) []domain.RiskBundle {
	return assess.TopN(l.List(f), n)
}

// Len reports the number of locations held.
func (l *Latest) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.newest)
}
