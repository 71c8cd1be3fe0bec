package apiclient

import (
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	Value    json.RawMessage
	StoredAt time.Time
}

// responseCache is a bounded LRU of GET responses with a fixed TTL.
// Entries are checked lazily and evicted on the first stale read.
type responseCache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	now     func() time.Time
}

// CacheStats describes the response cache contents
type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

func newResponseCache(capacity int, ttl time.Duration, now func() time.Time) (*responseCache, error) {
	entries, err := lru.New[string, cacheEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &responseCache{entries: entries, ttl: ttl, now: now}, nil
}

func (c *responseCache) get(key string) (json.RawMessage, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.StoredAt) >= c.ttl {
		c.entries.Remove(key)
		return nil, false
	}
	return entry.Value, true
}

func (c *responseCache) put(key string, value json.RawMessage) {
	c.entries.Add(key, cacheEntry{Value: value, StoredAt: c.now()})
}

func (c *responseCache) clear() {
	c.entries.Purge()
}

// purgeExpired removes every stale entry and returns how many were dropped.
func (c *responseCache) purgeExpired() int {
	now := c.now()
	var n int
	for _, key := range c.entries.Keys() {
		entry, ok := c.entries.Peek(key)
		if ok && now.Sub(entry.StoredAt) >= c.ttl {
			c.entries.Remove(key)
			n++
		}
	}
	return n
}

func (c *responseCache) stats() CacheStats {
	keys := c.entries.Keys()
	if keys == nil {
		keys = []string{}
	}
	return CacheStats{Size: len(keys), Keys: keys}
}

// cacheKey is method:url:body, suffixed with a token fingerprint for
// authenticated requests.
func cacheKey(method, url string, body []byte, fingerprint string) string {
	key := method + ":" + url + ":" + string(body)
	if fingerprint != "" {
		key += "#" + fingerprint
	}
	return key
}
