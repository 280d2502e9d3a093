package civix

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// resultCache is a size-bounded LRU of resolutions with per-entry expiry.
// ttlcache handles capacity and reaping; expiry is also checked against the
// resolver clock so lifetimes follow Config.now rather than the wall clock.
type resultCache struct {
	items *ttlcache.Cache[string, cacheEntry]
	now   func() time.Time
}

type cacheEntry struct {
	res     *Resolution
	expires time.Time
}

func newResultCache(size int, now func() time.Time) *resultCache {
	return &resultCache{
		items: ttlcache.New[string, cacheEntry](
			ttlcache.WithCapacity[string, cacheEntry](uint64(size)),
			ttlcache.WithDisableTouchOnHit[string, cacheEntry](),
		),
		now: now,
	}
}

func (c *resultCache) get(zip string) (*Resolution, bool) {
	item := c.items.Get(zip)
	if item == nil {
		return nil, false
	}
	e := item.Value()
	if !c.now().Before(e.expires) {
		c.items.Delete(zip)
		return nil, false
	}
	return e.res, true
}

func (c *resultCache) put(res *Resolution, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.items.Set(res.ZIP, cacheEntry{res: res, expires: c.now().Add(ttl)}, ttl)
}

func (c *resultCache) len() int {
	return c.items.Len()
}
