package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func TestAnswerKey_NormalizesQuestion(t *testing.T) {
	a := answerKey("book1", "What is  ATP?")
	b := answerKey("book1", "  what is atp? ")
	if a != b {
		t.Errorf("expected equal keys, got %q and %q", a, b)
	}
	if answerKey("book2", "What is ATP?") == a {
		t.Error("keys must be scoped to the book")
	}
	if !strings.HasPrefix(a, "studydeck:chat:book1:") {
		t.Errorf("unexpected key %q", a)
	}
}

func TestRateKey_Buckets(t *testing.T) {
	base := time.Unix(1_000_020, 0)
	k1 := rateKey("c", time.Minute, base)
	k2 := rateKey("c", time.Minute, base.Add(30*time.Second))
	k3 := rateKey("c", time.Minute, base.Add(90*time.Second))
	if k1 != k2 {
		t.Errorf("same window should share a key: %q vs %q", k1, k2)
	}
	if k1 == k3 {
		t.Errorf("next window should use a new key: %q", k3)
	}
}

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNew_BadURL(t *testing.T) {
	if _, err := New(context.Background(), "not a url"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCache_AnswerRoundTrip(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()
	book := uuid.NewString()

	if _, ok, err := c.GetAnswer(ctx, book, "q"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := c.SetAnswer(ctx, book, "q", "a", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.GetAnswer(ctx, book, "Q")
	if err != nil || !ok || got != "a" {
		t.Fatalf("expected hit with %q, got %q ok=%v err=%v", "a", got, ok, err)
	}
}

func TestCache_AnswerExpires(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	if err := c.SetAnswer(ctx, "book1", "q", "a", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.GetAnswer(ctx, "book1", "q"); ok {
		t.Error("expected miss after ttl")
	}
}

func TestCache_InvalidateBook(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	for _, q := range []string{"one", "two", "three"} {
		if err := c.SetAnswer(ctx, "book1", q, "a", time.Hour); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if err := c.SetAnswer(ctx, "book2", "one", "b", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := c.InvalidateBook(ctx, "book1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	for _, q := range []string{"one", "two", "three"} {
		if _, ok, _ := c.GetAnswer(ctx, "book1", q); ok {
			t.Errorf("expected miss for %q after invalidation", q)
		}
	}
	if got, ok, _ := c.GetAnswer(ctx, "book2", "one"); !ok || got != "b" {
		t.Errorf("other book must keep its answers, got %q ok=%v", got, ok)
	}
}

func TestCache_Allow(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()
	client := uuid.NewString()

	for i := range 3 {
		ok, err := c.Allow(ctx, client, 3, time.Minute)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := c.Allow(ctx, client, 3, time.Minute); ok {
		t.Error("fourth request should be limited")
	}
	if ok, _ := c.Allow(ctx, "someone-else", 3, time.Minute); !ok {
		t.Error("other clients have their own budget")
	}
}

func TestCache_AllowWindowExpires(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()
	clock := time.Unix(1_000_020, 0)
	c.now = func() time.Time { return clock }

	for range 2 {
		if ok, err := c.Allow(ctx, "c1", 2, time.Minute); err != nil || !ok {
			t.Fatalf("expected allowed, got ok=%v err=%v", ok, err)
		}
	}
	if ok, _ := c.Allow(ctx, "c1", 2, time.Minute); ok {
		t.Fatal("third request should be limited")
	}

	key := rateKey("c1", time.Minute, clock)
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("counter must carry the window ttl, got %v", ttl)
	}

	clock = clock.Add(time.Minute)
	mr.FastForward(time.Minute)
	if mr.Exists(key) {
		t.Error("old window counter should have expired")
	}
	if ok, err := c.Allow(ctx, "c1", 2, time.Minute); err != nil || !ok {
		t.Fatalf("expected allowed in the next window, got ok=%v err=%v", ok, err)
	}
}

func TestCache_AllowDisabled(t *testing.T) {
	c, mr := testCache(t)
	for range 5 {
		if ok, err := c.Allow(context.Background(), "c1", 0, time.Minute); err != nil || !ok {
			t.Fatalf("limit 0 must allow, got ok=%v err=%v", ok, err)
		}
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("expected no counters, got %v", keys)
	}
}

func TestCache_AllowRedisDown(t *testing.T) {
	c, mr := testCache(t)
	mr.Close()
	if _, err := c.Allow(context.Background(), "c1", 2, time.Minute); err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
}
