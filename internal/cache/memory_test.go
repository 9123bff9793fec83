package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryProviderRoundTrip(t *testing.T) {
	c := NewMemoryProvider()
	ctx := context.Background()

	if _, err := c.Get(ctx, "ip"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("empty cache returned %v, want miss", err)
	}
	if err := c.Set(ctx, "ip", []byte("203.0.113.7"), 0); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "ip")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "203.0.113.7" {
		t.Errorf("got %q", got)
	}

	if err := c.Del(ctx, "ip"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "ip"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("deleted key returned %v, want miss", err)
	}
}

func TestMemoryProviderTTL(t *testing.T) {
	c := NewMemoryProvider()
	ctx := context.Background()

	if err := c.Set(ctx, "ip", []byte("203.0.113.7"), time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := c.Get(ctx, "ip"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired key returned %v, want miss", err)
	}
}
