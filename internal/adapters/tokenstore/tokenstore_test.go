package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"filmflare/internal/ports"
)

var (
	_ ports.TokenStorePort = (*MemoryStore)(nil)
	_ ports.TokenStorePort = (*RedisStore)(nil)
)

func newRedisStore(t *testing.T, sessionKey string, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, sessionKey, ttl)
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	return store, mr
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if token, _ := store.Load(ctx); token != "" {
		t.Errorf("Expected empty store, got %q", token)
	}
	_ = store.Save(ctx, "abc123")
	if token, _ := store.Load(ctx); token != "abc123" {
		t.Errorf("Expected abc123, got %q", token)
	}
	_ = store.Clear(ctx)
	if token, _ := store.Load(ctx); token != "" {
		t.Errorf("Expected cleared store, got %q", token)
	}
}

func TestRedisStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, "tab-1", time.Minute)

	token, err := store.Load(ctx)
	if err != nil || token != "" {
		t.Fatalf("Expected empty token, got %q (%v)", token, err)
	}

	if err := store.Save(ctx, "abc123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, _ := mr.Get("filmflare:session:tab-1:access_token"); got != "abc123" {
		t.Errorf("Unexpected stored value %q", got)
	}
	if token, _ := store.Load(ctx); token != "abc123" {
		t.Errorf("Expected abc123, got %q", token)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("filmflare:session:tab-1:access_token") {
		t.Error("Expected key to be deleted")
	}
}

func TestRedisStore_ExpiresWithSession(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, "tab-2", time.Minute)

	_ = store.Save(ctx, "abc123")
	mr.FastForward(2 * time.Minute)

	if token, _ := store.Load(ctx); token != "" {
		t.Errorf("Expected token to expire with the session, got %q", token)
	}
}

func TestRedisStore_LoadRenewsTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, "tab-3", time.Minute)

	_ = store.Save(ctx, "abc123")
	mr.FastForward(40 * time.Second)
	if token, _ := store.Load(ctx); token != "abc123" {
		t.Fatalf("Expected token, got %q", token)
	}
	mr.FastForward(40 * time.Second)
	if token, _ := store.Load(ctx); token != "abc123" {
		t.Errorf("Expected sliding TTL to keep token, got %q", token)
	}
}

func TestNewRedisStore_Validation(t *testing.T) {
	if _, err := NewRedisStore(nil, "k", time.Minute); err == nil {
		t.Error("Expected error for nil client")
	}
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:0"})
	defer func() { _ = client.Close() }()
	if _, err := NewRedisStore(client, "  ", time.Minute); err == nil {
		t.Error("Expected error for empty session key")
	}
}
