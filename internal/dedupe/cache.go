// ABOUTME: Bounded TTL cache of recently seen idempotency tokens.
// ABOUTME: Lets sessions recognize broadcast echoes of their own sends.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// tokenRecord pairs a token's expiry with its position in the age list.
type tokenRecord struct {
	expiresAt time.Time
	element   *list.Element
}

// TokenCache tracks idempotency tokens a session has already handled.
// Entries expire after a TTL and the cache holds at most maxTokens
// entries, evicting the oldest first. Tokens are kept in an age-ordered
// list so eviction is O(1).
type TokenCache struct {
	mu        sync.Mutex
	records   map[string]*tokenRecord
	byAge     *list.List // oldest token at the front
	ttl       time.Duration
	maxTokens int
	done      chan struct{}
	closed    bool
}

// NewTokenCache builds a cache with the given entry lifetime and capacity.
// A background goroutine sweeps out expired tokens.
func NewTokenCache(ttl time.Duration, maxTokens int) *TokenCache {
	c := &TokenCache{
		records:   make(map[string]*tokenRecord),
		byAge:     list.New(),
		ttl:       ttl,
		maxTokens: maxTokens,
		done:      make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// SeenOrRemember atomically reports whether the token was already seen
// and, if not, remembers it. Returns true for a duplicate. The combined
// check-and-mark avoids a race between two deliveries of the same echo.
func (c *TokenCache) SeenOrRemember(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.records[token]; ok && time.Now().Before(rec.expiresAt) {
		return true
	}
	c.rememberLocked(token)
	return false
}

// Seen reports whether the token is in the cache and not expired.
func (c *TokenCache) Seen(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[token]
	return ok && time.Now().Before(rec.expiresAt)
}

// Remember records a token without checking for prior presence.
func (c *TokenCache) Remember(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rememberLocked(token)
}

func (c *TokenCache) rememberLocked(token string) {
	expires := time.Now().Add(c.ttl)

	if rec, ok := c.records[token]; ok {
		rec.expiresAt = expires
		c.byAge.MoveToBack(rec.element)
		return
	}

	if len(c.records) >= c.maxTokens {
		if oldest := c.byAge.Front(); oldest != nil {
			c.byAge.Remove(oldest)
			delete(c.records, oldest.Value.(string))
		}
	}

	c.records[token] = &tokenRecord{
		expiresAt: expires,
		element:   c.byAge.PushBack(token),
	}
}

// sweepLoop periodically drops expired tokens so the map does not pin
// memory for tokens that will never recur.
func (c *TokenCache) sweepLoop() {
	interval := c.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

func (c *TokenCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for token, rec := range c.records {
		if now.After(rec.expiresAt) {
			c.byAge.Remove(rec.element)
			delete(c.records, token)
		}
	}
}

// Close stops the sweeper. Safe to call more than once.
func (c *TokenCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
