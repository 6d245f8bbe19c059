package cache

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSetGetExpire(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(10)
	c.now = func() time.Time { return now }

	c.Set("a", "x", time.Minute)
	if v, ok := c.GetString("a"); !ok || v != "x" {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be collected on read, len=%d", c.Len())
	}
}

func TestEvictsSoonestExpiring(t *testing.T) {
	c := New(2)
	c.Set("long", 1, time.Hour)
	c.Set("short", 2, time.Second)
	c.Set("new", 3, time.Hour)
	if _, ok := c.Get("short"); ok {
		t.Error("expected the soonest-expiring entry to be evicted")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("expected long entry to survive")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
}

func TestInvalidateApp(t *testing.T) {
	c := New(0)
	c.Set(TranslationKey("app1", "es", "hello"), "hola", TranslationTTL)
	c.Set(GreetingKey("app1", "en"), "Hi", GreetingTTL)
	c.Set(GreetingKey("app2", "en"), "Hi", GreetingTTL)
	c.InvalidateApp("app1")
	if c.Len() != 1 {
		t.Errorf("expected only app2 entry to remain, got %d", c.Len())
	}
}

func TestKeys(t *testing.T) {
	k := TranslationKey("app1", "es", "hello")
	if !strings.HasPrefix(k, "translation:app:app1:es:") || len(k) != len("translation:app:app1:es:")+12 {
		t.Errorf("unexpected translation key %q", k)
	}
	if k != TranslationKey("app1", "es", "hello") {
		t.Error("translation key must be stable")
	}
	if got := GreetingKey("", "fr"); got != "greeting:default:fr" {
		t.Errorf("unexpected greeting key %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(50)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + (i+j)%26))
				c.Set(key, j, time.Minute)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 50 {
		t.Errorf("cache exceeded cap: %d", c.Len())
	}
}
