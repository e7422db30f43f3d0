package cache

import (
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	c := NewCache(CacheConfig{DefaultTTL: time.Minute})

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() on empty cache should miss")
	}

	c.Set("key", 42, 0)
	v, ok := c.Get("key")
	if !ok || v.(int) != 42 {
		t.Errorf("Get() = %v, %v, want 42, true", v, ok)
	}
}

func TestCache_SetZeroTTLUsesDefault(t *testing.T) {
	c := NewCache(CacheConfig{DefaultTTL: 10 * time.Millisecond})
	c.Set("key", "value", 0)

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("key"); ok {
		t.Error("Get() should miss after DefaultTTL elapses")
	}
}

func TestCache_ExplicitTTLOverridesDefault(t *testing.T) {
	c := NewCache(CacheConfig{DefaultTTL: time.Hour})
	c.Set("key", "value", 5*time.Millisecond)

	time.Sleep(15 * time.Millisecond)
	if _, ok := c.Get("key"); ok {
		t.Error("Get() should miss once the explicit ttl elapses, regardless of DefaultTTL")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(CacheConfig{DefaultTTL: time.Minute})
	c.Set("key", "value", 0)
	c.Invalidate("key")

	if _, ok := c.Get("key"); ok {
		t.Error("Get() should miss after Invalidate()")
	}
}

func TestCache_Size(t *testing.T) {
	c := NewCache(CacheConfig{DefaultTTL: time.Minute})
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	if got := c.Size(); got != 2 {
		t.Errorf("Size() = %d, want 2", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DefaultTTL != 5*time.Minute || cfg.MaxSize != 1000 || cfg.CleanupInterval != 10*time.Minute {
		t.Errorf("DefaultConfig() = %+v, unexpected values", cfg)
	}
}
