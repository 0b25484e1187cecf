package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

type cacheEntry struct {
	expiry time.Time
	fields model.ExtractedFields
}

// extractionCache remembers extraction results by content hash, so a document
// re-sent in a later cycle is not read twice.
type extractionCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

func newExtractionCache(ttl time.Duration) *extractionCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	cache := &extractionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// cacheKey hashes the context text and every image payload.
func cacheKey(contextText string, images []Image) string {
	h := sha256.New()
	h.Write([]byte(contextText))
	for _, img := range images {
		h.Write([]byte{0})
		h.Write([]byte(img.MediaType))
		h.Write(img.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *extractionCache) get(key string) (model.ExtractedFields, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiry) {
		return model.ExtractedFields{}, false
	}
	return entry.fields, true
}

func (c *extractionCache) set(key string, fields model.ExtractedFields) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		fields: fields,
		expiry: c.now().Add(c.ttl),
	}
}

func (c *extractionCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *extractionCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, key)
		}
	}
}

func (c *extractionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *extractionCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
