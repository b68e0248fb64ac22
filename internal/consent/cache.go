package consent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the byte-level cache contract CachedStore runs on. A miss is
// a normal result, not an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// redisCache adapts a redis client to the Cache contract.
type redisCache struct {
	rdb *redis.Client
}

func (c redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c redisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c redisCache) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// CachedStore wraps a Store with a read-through cache keyed by uuid.
//
// Read-after-write is preserved by invalidating the cached entry before
// every write completes its reload. Cache failures never fail the request;
// they fall through to the backing store.
type CachedStore struct {
	inner Store
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
	clock func() time.Time
}

const defaultCacheTTL = 15 * time.Minute

func NewCachedStore(inner Store, rdb *redis.Client, log *slog.Logger) *CachedStore {
	if log == nil {
		log = slog.Default()
	}
	return &CachedStore{
		inner: inner,
		cache: redisCache{rdb: rdb},
		ttl:   defaultCacheTTL,
		log:   log,
		clock: time.Now,
	}
}

func cacheKey(uid string) string {
	return "consent:uuid:" + uid
}

func (c *CachedStore) Load(ctx context.Context, sel Selector) (Record, bool, error) {
	// Only pure uuid lookups are cacheable; id and userId selectors can
	// match a record whose cached copy is keyed elsewhere.
	if sel.UUID == "" || sel.ID != 0 || sel.UserID != 0 {
		return c.inner.Load(ctx, sel)
	}

	data, hit, err := c.cache.Get(ctx, cacheKey(sel.UUID))
	if err != nil {
		c.log.Debug("consent cache read failed", "err", err)
	} else if hit {
		var rec Record
		if err := json.Unmarshal(data, &rec); err == nil {
			// Re-apply staleness: the cached copy may have crossed the
			// six-month boundary while cached.
			return applyStaleness(rec, c.clock()), true, nil
		}
	}

	rec, ok, err := c.inner.Load(ctx, sel)
	if err != nil || !ok {
		return rec, ok, err
	}
	if data, err := json.Marshal(rec); err == nil {
		if err := c.cache.Set(ctx, cacheKey(rec.UUID), data, c.ttl); err != nil {
			c.log.Debug("consent cache write failed", "err", err)
		}
	}
	return rec, true, nil
}

func (c *CachedStore) invalidate(ctx context.Context, uid string) {
	if uid == "" {
		return
	}
	if err := c.cache.Del(ctx, cacheKey(uid)); err != nil {
		c.log.Debug("consent cache invalidation failed", "err", err, "uuid", uid)
	}
}

func (c *CachedStore) Insert(ctx context.Context, rec Record) (Record, error) {
	out, err := c.inner.Insert(ctx, rec)
	if err == nil {
		c.invalidate(ctx, out.UUID)
	}
	return out, err
}

func (c *CachedStore) Update(ctx context.Context, uid string, rec Record) error {
	err := c.inner.Update(ctx, uid, rec)
	if err == nil {
		c.invalidate(ctx, uid)
	}
	return err
}

func (c *CachedStore) LookupUserIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	return c.inner.LookupUserIDByEmail(ctx, email)
}

func (c *CachedStore) BindUserID(ctx context.Context, uid string, userID int64) error {
	err := c.inner.BindUserID(ctx, uid, userID)
	if err == nil {
		c.invalidate(ctx, uid)
	}
	return err
}

func (c *CachedStore) ExtendExpiry(ctx context.Context, uid string) error {
	err := c.inner.ExtendExpiry(ctx, uid)
	if err == nil {
		c.invalidate(ctx, uid)
	}
	return err
}
