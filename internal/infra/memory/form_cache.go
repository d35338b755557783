package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"formbuilder-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// FormLoader fetches form definitions from a backing store.
type FormLoader interface {
	GetForm(ctx context.Context, formID string) (domain.Form, error)
}

// FormCache caches forms with TTL to avoid repeated store hits on the
// submission path.
type FormCache struct {
	loader FormLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedForm
	// gen is bumped by Invalidate; a load started under an older
	// generation does not store its result.
	gen map[string]uint64
}

type cachedForm struct {
	form      domain.Form
	expiresAt time.Time
}

func NewFormCache(loader FormLoader, ttl time.Duration) *FormCache {
	return &FormCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedForm),
		gen:    make(map[string]uint64),
	}
}

func (c *FormCache) lookup(formID string, now time.Time) (domain.Form, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[formID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Form{}, false
	}
	return entry.form, true
}

func (c *FormCache) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	if form, ok := c.lookup(formID, c.clock()); ok {
		return form, nil
	}

	result, err, _ := c.sf.Do(formID, func() (interface{}, error) {
		now := c.clock()
		if form, ok := c.lookup(formID, now); ok {
			return form, nil
		}
		c.mu.RLock()
		gen := c.gen[formID]
		c.mu.RUnlock()

		form, err := c.loader.GetForm(ctx, formID)
		if err != nil {
			return domain.Form{}, err
		}
		if c.ttl <= 0 {
			return form, nil
		}

		c.mu.Lock()
		if c.gen[formID] == gen {
			c.cache[formID] = cachedForm{
				form:      form,
				expiresAt: now.Add(c.ttlWithJitterLocked()),
			}
		}
		c.mu.Unlock()
		return form, nil
	})
	if err != nil {
		return domain.Form{}, err
	}
	return result.(domain.Form), nil
}

// Invalidate drops the cached copy of a form. A load already in flight is
// not cached and later callers start a fresh one.
func (c *FormCache) Invalidate(_ context.Context, formID string) {
	c.mu.Lock()
	delete(c.cache, formID)
	c.gen[formID]++
	c.mu.Unlock()
	c.sf.Forget(formID)
}

func (c *FormCache) ttlWithJitterLocked() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
