package impact

import (
	"sync"

	"github.com/couchcryptid/hazard-risk-service/internal/domain"
	"github.com/couchcryptid/hazard-risk-service/internal/observability"
	"github.com/couchcryptid/hazard-risk-service/internal/rules"
)

// CachedEstimator wraps an Estimator with an in-memory LRU cache. Entries are
// tied to the snapshot version that produced them; the first lookup against
// a newer snapshot purges the cache. Lookups against an older snapshot, such
// as a batch still running across a reload, neither purge nor switch back.
type CachedEstimator struct {
	inner   Estimator
	metrics *observability.Metrics

	mu       sync.Mutex
	version  string
	sequence uint64
	cache   *lruCache[cacheKey, domain.ImpactEstimate]
}

type cacheKey struct {
	version  string
	action   string
	location string
	tier     domain.Tier
}

// NewCachedEstimator creates a cache decorator around an estimator.
func NewCachedEstimator(inner Estimator, maxEntries int, metrics *observability.Metrics) *CachedEstimator {
	return &CachedEstimator{
		inner:   inner,
		metrics: metrics,
		cache:   newLRUCache[cacheKey, domain.ImpactEstimate](maxEntries),
	}
}

// Estimate implements Estimator.
func (c *CachedEstimator) Estimate(snap *rules.Snapshot, action domain.RecommendedAction, tier domain.RiskTier) (domain.ImpactEstimate, error) {
	c.observe(snap)

	key := cacheKey{version: snap.Version(), action: action.ID, location: tier.LocationID, tier: tier.Tier}
	if est, ok := c.cache.get(key); ok {
		c.metrics.ImpactCache.WithLabelValues("hit").Inc()
		return est, nil
	}
	c.metrics.ImpactCache.WithLabelValues("miss").Inc()

	est, err := c.inner.Estimate(snap, action, tier)
	if err != nil {
		return est, err
	}
	c.cache.put(key, est)
	return est, nil
}

// Invalidate drops every entry when snap is newer than the last snapshot
// seen. It is registered as a rules.Store subscriber.
func (c *CachedEstimator) Invalidate(snap *rules.Snapshot) {
	c.observe(snap)
}

// Len reports the number of cached estimates.
func (c *CachedEstimator) Len() int {
	return c.cache.len()
}

func (c *CachedEstimator) observe(snap *rules.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version == snap.Version() {
		return
	}
	if c.version != "" {
		if snap.Sequence() <= c.sequence {
			return
		}
		c.cache.purge()
		c.metrics.ImpactCache.WithLabelValues("purge").Inc()
	}
	c.version = snap.Version()
	c.sequence = snap.Sequence()
}
