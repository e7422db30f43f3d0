package chainconn

import "testing"

func TestNewBalanceCache_MissThenHit(t *testing.T) {
	c := newBalanceCache()
	if _, ok := c.Get("pk"); ok {
		t.Error("Get() on fresh cache should miss")
	}

	c.Set("pk", int64(100), 0)
	v, ok := c.Get("pk")
	if !ok || v.(int64) != 100 {
		t.Errorf("Get() = %v, %v, want 100, true", v, ok)
	}
}

func TestNewBlockhashCache_InvalidatesIndependentlyOfBalanceCache(t *testing.T) {
	balances := newBalanceCache()
	blockhashes := newBlockhashCache()

	balances.Set("pk", int64(5), 0)
	blockhashes.Set("latest", "abc123", 0)

	blockhashes.Invalidate("latest")

	if _, ok := blockhashes.Get("latest"); ok {
		t.Error("blockhash cache should miss after Invalidate()")
	}
	if _, ok := balances.Get("pk"); !ok {
		t.Error("invalidating the blockhash cache should not affect the balance cache")
	}
}
