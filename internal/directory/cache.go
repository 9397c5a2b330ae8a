package directory

import (
	"context"
	"sync"
	"time"

	"cgraph/internal/domain"
)

// DefaultBundleTTL bounds how long a fetched recipient bundle may be
// reused for encryption.
const DefaultBundleTTL = 5 * time.Minute

// bundleFetcher is the slice of the directory client the cache needs.
type bundleFetcher interface {
	FetchBundle(ctx context.Context, userID domain.UserID) (domain.ServerPreKeyBundle, error)
}

type cacheEntry struct {
	bundle    domain.ServerPreKeyBundle
	fetchedAt time.Time
}

// BundleCache caches fetched recipient bundles for a bounded TTL.
//
// A bundle carrying a one-time prekey is never stored: the directory
// marked that prekey consumed when it served the bundle, and reusing it
// across sends would break the one-time guarantee. Only one-time-free
// bundles (the exhaustion case) are cached.
//
// Bundle acquisition is serialized per recipient, so concurrent sends to
// the same recipient cannot observe the same one-time prekey.
type BundleCache struct {
	fetch bundleFetcher
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[domain.UserID]cacheEntry
	locks   map[domain.UserID]*sync.Mutex
}

// NewBundleCache wraps fetch with a TTL cache. The cache has an injected
// lifetime: construct one per logged-in session and drop it on logout.
func NewBundleCache(fetch bundleFetcher, ttl time.Duration) *BundleCache {
	if ttl <= 0 {
		ttl = DefaultBundleTTL
	}
	return &BundleCache{
		fetch:   fetch,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[domain.UserID]cacheEntry),
		locks:   make(map[domain.UserID]*sync.Mutex),
	}
}

// RecipientBundle returns a cached bundle fetched within the TTL, or
// fetches a fresh one.
func (c *BundleCache) RecipientBundle(ctx context.Context, userID domain.UserID) (domain.ServerPreKeyBundle, error) {
	lock := c.recipientLock(userID)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	entry, ok := c.entries[userID]
	now := c.now()
	c.mu.Unlock()

	if ok && now.Sub(entry.fetchedAt) < c.ttl {
		return entry.bundle, nil
	}

	bundle, err := c.fetch.FetchBundle(ctx, userID)
	if err != nil {
		return domain.ServerPreKeyBundle{}, err
	}

	c.mu.Lock()
	if bundle.HasOneTimePreKey() {
		// Single-use material must not be served twice.
		delete(c.entries, userID)
	} else {
		c.entries[userID] = cacheEntry{bundle: bundle, fetchedAt: c.now()}
	}
	c.mu.Unlock()

	return bundle, nil
}

// Invalidate drops the cached bundle for one recipient.
func (c *BundleCache) Invalidate(userID domain.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Clear drops every cached bundle.
func (c *BundleCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.UserID]cacheEntry)
}

func (c *BundleCache) recipientLock(userID domain.UserID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[userID]
	if !ok {
		l = new(sync.Mutex)
		c.locks[userID] = l
	}
	return l
}
