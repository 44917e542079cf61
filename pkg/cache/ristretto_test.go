package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()

	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewRistrettoCache() error: %v", err)
	}

	rc, ok := c.(*RistrettoCache)
	if !ok {
		t.Fatal("expected *RistrettoCache")
	}

	t.Cleanup(rc.Close)
	return rc
}

func TestRistrettoCache_SetGet(t *testing.T) {
	c := newTestCache(t)

	if !c.Set("price:ETH", 3145.22, time.Minute) {
		t.Fatal("Set returned false")
	}
	c.Wait()

	value, found := c.Get("price:ETH")
	if !found {
		t.Fatal("expected key to be found")
	}

	price, ok := value.(float64)
	if !ok || price != 3145.22 {
		t.Errorf("Get = %v, want 3145.22", value)
	}
}

func TestRistrettoCache_GetMissing(t *testing.T) {
	c := newTestCache(t)

	_, found := c.Get("price:UNKNOWN")
	if found {
		t.Error("expected miss for absent key")
	}
}

func TestRistrettoCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("price:BTC", 64000.0, 20*time.Millisecond)
	c.Wait()

	time.Sleep(50 * time.Millisecond)

	_, found := c.Get("price:BTC")
	if found {
		t.Error("expected entry to expire")
	}
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestCache(t)

	c.Set("price:SOL", 142.0, time.Minute)
	c.Wait()
	c.Delete("price:SOL")

	_, found := c.Get("price:SOL")
	if found {
		t.Error("expected deleted key to be absent")
	}
}
