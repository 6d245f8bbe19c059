// Package cache provides a small thread-safe TTL cache for translations, greetings and context lookups.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the cache size.
const DefaultMaxEntries = 1000

const (
	// TranslationTTL is how long a translated text stays cached.
	TranslationTTL = time.Hour
	// GreetingTTL is how long a rendered greeting stays cached.
	GreetingTTL = 10 * time.Minute
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is an in-memory TTL cache. Inserting beyond the cap evicts the entry that expires soonest.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

// New creates a cache holding at most maxEntries; non-positive uses DefaultMaxEntries.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{entries: make(map[string]entry), maxEntries: maxEntries, now: time.Now}
}

// Get returns a live value.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// GetString returns a live string value.
func (c *Cache) GetString(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores value for ttl.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictSoonestLocked()
	}
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *Cache) evictSoonestLocked() {
	var victim string
	var soonest time.Time
	for k, e := range c.entries {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim, soonest = k, e.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeletePattern removes every key containing substr and returns how many were removed.
func (c *Cache) DeletePattern(substr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.Contains(k, substr) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, including expired ones not yet collected.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// InvalidateApp drops everything cached for one deployment.
func (c *Cache) InvalidateApp(appID string) {
	n := c.DeletePattern("app:"+appID) + c.DeletePattern("greeting:"+appID)
	slog.Info("Cache.InvalidateApp: invalidated entries", "appID", appID, "count", n)
}

// TranslationKey builds the cache key for a translated text.
func TranslationKey(appID, lang string, texts ...string) string {
	raw, _ := json.Marshal(texts)
	sum := md5.Sum(raw)
	hash := hex.EncodeToString(sum[:])[:12]
	prefix := ""
	if appID != "" {
		prefix = "app:" + appID + ":"
	}
	return fmt.Sprintf("translation:%s%s:%s", prefix, lang, hash)
}

// GreetingKey builds the cache key for a rendered greeting.
func GreetingKey(appID, lang string) string {
	if appID == "" {
		appID = "default"
	}
	return fmt.Sprintf("greeting:%s:%s", appID, lang)
}
