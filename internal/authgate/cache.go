package authgate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"soc-portal/internal/identity/domain"
	"soc-portal/internal/security"
)

// CheckCache holds recently resolved identities keyed by email so bursts of checks skip the
// credential store. The gate still runs the status and portal-id checks on cached identities.
// Implementations must be safe for concurrent use.
type CheckCache interface {
	Get(ctx context.Context, email string) (*domain.Identity, bool)
	Put(ctx context.Context, email string, i *domain.Identity)
	Invalidate(ctx context.Context, email string)
}

func cacheKey(email string) string {
	return domain.NormalizeEmail(email)
}

// cacheable strips the password hash; cached identities never carry credentials.
func cacheable(i *domain.Identity) *domain.Identity {
	c := *i
	c.PasswordHash = ""
	return &c
}

// MemoryCache is an in-process CheckCache with a fixed TTL.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	identity  *domain.Identity
	expiresAt time.Time
}

// NewMemoryCache returns a MemoryCache. ttl <= 0 returns nil; a nil *MemoryCache caches nothing.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		return nil
	}
	return &MemoryCache{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// Get returns a copy of the cached identity when present and not expired.
func (c *MemoryCache) Get(_ context.Context, email string) (*domain.Identity, bool) {
	if c == nil {
		return nil, false
	}
	key := cacheKey(email)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	cp := *e.identity
	return &cp, true
}

// Put stores i until the TTL elapses. Expired entries are swept on write.
func (c *MemoryCache) Put(_ context.Context, email string, i *domain.Identity) {
	if c == nil || i == nil {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[cacheKey(email)] = memoryEntry{identity: cacheable(i), expiresAt: now.Add(c.ttl)}
}

// Invalidate drops the entry for email.
func (c *MemoryCache) Invalidate(_ context.Context, email string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, cacheKey(email))
	c.mu.Unlock()
}

// Len returns the number of live and expired-but-unswept entries.
func (c *MemoryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache is a CheckCache shared by every server instance.
// Redis failures degrade to cache misses; the gate then reads the credential store.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	onErr  func(error)
}

// NewRedisCache returns a RedisCache. prefix defaults to "socportal:authcheck".
// onErr, when non-nil, receives Redis errors (the server logs them).
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration, onErr func(error)) *RedisCache {
	if prefix == "" {
		prefix = "socportal:authcheck"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, onErr: onErr}
}

func (c *RedisCache) key(email string) string {
	return c.prefix + ":" + security.Fingerprint(cacheKey(email))
}

func (c *RedisCache) report(err error) {
	if err != nil && c.onErr != nil {
		c.onErr(err)
	}
}

// Get reads and decodes the cached identity.
func (c *RedisCache) Get(ctx context.Context, email string) (*domain.Identity, bool) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.key(email)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.report(err)
		return nil, false
	}
	var i domain.Identity
	if err := json.Unmarshal(raw, &i); err != nil {
		c.report(err)
		return nil, false
	}
	return &i, true
}

// Put stores i as JSON with the cache TTL.
func (c *RedisCache) Put(ctx context.Context, email string, i *domain.Identity) {
	if c == nil || c.client == nil || c.ttl <= 0 || i == nil {
		return
	}
	raw, err := json.Marshal(cacheable(i))
	if err != nil {
		c.report(err)
		return
	}
	c.report(c.client.Set(ctx, c.key(email), raw, c.ttl).Err())
}

// Invalidate deletes the entry for email.
func (c *RedisCache) Invalidate(ctx context.Context, email string) {
	if c == nil || c.client == nil {
		return
	}
	c.report(c.client.Del(ctx, c.key(email)).Err())
}
