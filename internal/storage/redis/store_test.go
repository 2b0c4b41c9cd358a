package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/storage"
	"github.com/tjfontaine/jarvis/internal/storage/storagetest"
)

// newStore connects to JARVIS_TEST_REDIS_URL when set, otherwise to an
// in-process miniredis server. Keys get a per-test prefix.
func newStore(t *testing.T, opts storage.Options) *Store {
	t.Helper()
	url := os.Getenv("JARVIS_TEST_REDIS_URL")
	if url == "" {
		mr := miniredis.RunT(t)
		url = "redis://" + mr.Addr()
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("jarvis-test:%d:", time.Now().UnixNano())
	store, err := Dial(ctx, url, Opts{KeyPrefix: prefix, Storage: opts})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() {
		iter := store.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			store.client.Del(ctx, iter.Val())
		}
		store.Close()
	})
	return store
}

func TestRedisStore_Pending(t *testing.T) {
	storagetest.RunPendingStoreTests(t, func(t *testing.T, opts storage.Options) ports.PendingStore {
		return newStore(t, opts)
	})
}

func TestRedisStore_Memory(t *testing.T) {
	storagetest.RunMemoryStoreTests(t, func(t *testing.T, opts storage.Options) ports.MemoryStore {
		return newStore(t, opts)
	})
}

func TestRedisStore_Keys(t *testing.T) {
	s := New(nil, Opts{})
	if got := s.pendingKey("Kitchen Display"); got != "jarvis:pending:kitchen_display" {
		t.Errorf("pendingKey() = %q", got)
	}
	if got := s.memoryKey(""); got != "jarvis:memory:default" {
		t.Errorf("memoryKey() = %q", got)
	}
}

func TestRedisStore_KeyTTLAndCap(t *testing.T) {
	mr := miniredis.RunT(t)
	store := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), Opts{Storage: storage.Options{
		PendingTTL:  time.Minute,
		MemoryTTL:   time.Hour,
		MaxMessages: 3,
	}})
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	now := time.Date(2026, 4, 12, 8, 30, 0, 0, time.UTC)

	if err := store.Set(ctx, "kitchen", domain.StartRobot{Robot: "vacuum"}, now); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if ttl := mr.TTL("jarvis:pending:kitchen"); ttl != time.Minute {
		t.Errorf("pending TTL = %v, want %v", ttl, time.Minute)
	}

	for i := 0; i < 5; i++ {
		msg := domain.MemoryMessage{Timestamp: now, Role: domain.RoleUser, Content: fmt.Sprintf("m%d", i)}
		if err := store.Append(ctx, "kitchen", msg, now); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	list, err := mr.List("jarvis:memory:kitchen")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 {
		t.Errorf("memory list len = %d, want 3", len(list))
	}
	if ttl := mr.TTL("jarvis:memory:kitchen"); ttl != time.Hour {
		t.Errorf("memory TTL = %v, want %v", ttl, time.Hour)
	}

	// The server drops the key once its TTL passes.
	mr.FastForward(2 * time.Minute)
	item, err := store.Get(ctx, "kitchen", now)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if item != nil {
		t.Errorf("Get() after key expiry = %+v, want nil", item)
	}
}
