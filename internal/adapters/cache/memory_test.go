package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheExpiresEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.nowFn = func() time.Time { return now }

	if err := c.Set(ctx, "globals", `{"Header":{}}`, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, err := c.Get(ctx, "globals"); err != nil || !ok || v != `{"Header":{}}` {
		t.Fatalf("expected hit, got %q ok=%v err=%v", v, ok, err)
	}
	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "globals"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMemoryCacheDeleteAndMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	_ = c.Set(ctx, "a", "1", 0)
	_ = c.Set(ctx, "b", "2", 0)
	if err := c.Delete(ctx, "a", "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := c.Get(ctx, "a"); ok || err != nil {
		t.Fatalf("expected miss after delete, ok=%v err=%v", ok, err)
	}
	if v, ok, _ := c.Get(ctx, "b"); !ok || v != "2" {
		t.Fatalf("expected b to survive, got %q", v)
	}
}

func TestConnectParsesURLAndAddress(t *testing.T) {
	client, err := Connect(context.Background(), "redis://:secret@cache.internal:6380/2")
	if err != nil {
		t.Fatalf("connect url: %v", err)
	}
	defer client.Close()
	opts := client.Options()
	if opts.Addr != "cache.internal:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Fatalf("unexpected options %+v", opts)
	}

	plain, err := Connect(context.Background(), "localhost:6379")
	if err != nil {
		t.Fatalf("connect addr: %v", err)
	}
	defer plain.Close()
	if plain.Options().Addr != "localhost:6379" {
		t.Fatalf("unexpected addr %s", plain.Options().Addr)
	}

	if _, err := Connect(context.Background(), "redis://cache.internal:notaport/x"); err == nil {
		t.Fatalf("expected parse error")
	}
}
