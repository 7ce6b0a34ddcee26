package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var removed int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func TestSessionCacheLifecycle(t *testing.T) {
	store := newFakeStore()
	cache := newSessionCache(store, "replica-a", time.Hour)
	ctx := context.Background()

	if cache.Key() != "cuffie:session:replica-a" {
		t.Fatalf("unexpected key %q", cache.Key())
	}
	if got, err := cache.Get(ctx); err != nil || got != "" {
		t.Fatalf("expected empty cache, got %q, %v", got, err)
	}
	if err := cache.Set(ctx, "rpc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if store.ttls[cache.Key()] != time.Hour {
		t.Fatalf("ttl not applied: %v", store.ttls[cache.Key()])
	}
	if got, _ := cache.Get(ctx); got != "rpc" {
		t.Fatalf("unexpected connector %q", got)
	}
	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("clearing a missing key must succeed: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSessionCacheSurfacesErrors(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	cache := newSessionCache(store, "", -time.Second)

	if cache.Key() != "cuffie:session:default" {
		t.Fatalf("unexpected default key %q", cache.Key())
	}
	if _, err := cache.Get(context.Background()); !errors.Is(err, store.err) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := cache.Set(context.Background(), "rpc"); err == nil {
		t.Fatal("expected set error")
	}
}

func TestNewSessionCacheRequiresAddress(t *testing.T) {
	if _, err := NewSessionCache(context.Background(), Config{}); err == nil {
		t.Fatal("expected missing address to be rejected")
	}
}
