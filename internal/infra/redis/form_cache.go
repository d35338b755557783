package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"formbuilder-service/internal/config"
	"formbuilder-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// FormLoader fetches form definitions from a backing store.
type FormLoader interface {
	GetForm(ctx context.Context, formID string) (domain.Form, error)
}

// FormCache caches form documents in Redis as JSON and falls back to a
// loader on cache miss:
//
//	SET form:{formID} <json> PX ttl   (only if form:gen:{formID} is unchanged)
//
// Invalidate bumps form:gen:{formID}, so a load that was in flight when the
// form changed never writes its stale copy. Redis errors degrade to the
// loader; they never fail a read.
type FormCache struct {
	client *redis.Client
	loader FormLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

// setIfGeneration writes KEYS[1] only while KEYS[2] still holds ARGV[1].
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func NewFormCache(client *redis.Client, loader FormLoader, ttl time.Duration) *FormCache {
	return &FormCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *FormCache) GetForm(ctx context.Context, formID string) (domain.Form, error) {
	if form, ok := c.read(ctx, formID); ok {
		return form, nil
	}

	result, err, _ := c.sf.Do(formID, func() (interface{}, error) {
		// Re-check cache in case another instance filled it.
		if form, ok := c.read(ctx, formID); ok {
			return form, nil
		}

		gen, err := c.client.Get(ctx, c.genKey(formID)).Result()
		switch {
		case errors.Is(err, redis.Nil):
			gen = "0"
		case err != nil:
			config.WithContext(ctx).WithError(err).WithField("form_id", formID).Warn("read form generation")
			gen = ""
		}

		form, err := c.loader.GetForm(ctx, formID)
		if err != nil {
			return domain.Form{}, err
		}

		ttl := c.ttlWithJitter()
		if ttl > 0 && gen != "" {
			if raw, err := json.Marshal(form); err == nil {
				keys := []string{c.key(formID), c.genKey(formID)}
				if err := setIfGeneration.Run(ctx, c.client, keys, gen, raw, ttl.Milliseconds()).Err(); err != nil {
					config.WithContext(ctx).WithError(err).WithField("form_id", formID).Warn("cache form")
				}
			}
		}
		return form, nil
	})
	if err != nil {
		return domain.Form{}, err
	}
	return result.(domain.Form), nil
}

// Invalidate drops the cached copy of a form and bumps its generation.
func (c *FormCache) Invalidate(ctx context.Context, formID string) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(formID))
		pipe.Del(ctx, c.key(formID))
		return nil
	})
	if err != nil {
		config.WithContext(ctx).WithError(err).WithField("form_id", formID).Warn("invalidate cached form")
	}
	c.sf.Forget(formID)
}

func (c *FormCache) read(ctx context.Context, formID string) (domain.Form, bool) {
	raw, err := c.client.Get(ctx, c.key(formID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			config.WithContext(ctx).WithError(err).WithField("form_id", formID).Warn("read cached form")
		}
		return domain.Form{}, false
	}
	var form domain.Form
	if err := json.Unmarshal(raw, &form); err != nil {
		return domain.Form{}, false
	}
	return form, true
}

func (c *FormCache) key(formID string) string {
	return "form:" + formID
}

func (c *FormCache) genKey(formID string) string {
	return "form:gen:" + formID
}

func (c *FormCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
