// Package storagetest is the behavior every pending and memory backend must
// share. Backend packages call RunPendingStoreTests and RunMemoryStoreTests
// from their own tests.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/storage"
)

// PendingFactory returns an empty store honoring opts.
type PendingFactory func(t *testing.T, opts storage.Options) ports.PendingStore

// MemoryFactory returns an empty store honoring opts.
type MemoryFactory func(t *testing.T, opts storage.Options) ports.MemoryStore

var baseTime = time.Date(2026, 4, 12, 8, 30, 0, 0, time.UTC)

var vacuum = domain.StartRobot{Robot: "vacuum", Mode: "auto"}

// RunPendingStoreTests runs the pending-confirmation contract against newStore.
func RunPendingStoreTests(t *testing.T, newStore PendingFactory) {
	ctx := context.Background()
	ttl := 2 * time.Minute
	opts := storage.Options{PendingTTL: ttl}

	t.Run("get absent", func(t *testing.T) {
		s := newStore(t, opts)
		item, err := s.Get(ctx, "nobody", baseTime)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if item != nil {
			t.Errorf("Get() = %+v, want nil", item)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t, opts)
		if err := s.Set(ctx, "kitchen", vacuum, baseTime); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		item, err := s.Get(ctx, "kitchen", baseTime.Add(time.Second))
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if item == nil {
			t.Fatal("Get() = nil, want item")
		}
		if item.Action != vacuum {
			t.Errorf("Action = %#v, want %#v", item.Action, vacuum)
		}
		if !item.ExpiresAt.Equal(baseTime.Add(ttl)) {
			t.Errorf("ExpiresAt = %v, want %v", item.ExpiresAt, baseTime.Add(ttl))
		}
	})

	t.Run("expired item is absent and removed", func(t *testing.T) {
		s := newStore(t, opts)
		if err := s.Set(ctx, "kitchen", vacuum, baseTime); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		late := baseTime.Add(ttl + time.Millisecond)
		for i := 0; i < 2; i++ {
			item, err := s.Get(ctx, "kitchen", late)
			if err != nil {
				t.Fatalf("Get() #%d error = %v", i+1, err)
			}
			if item != nil {
				t.Fatalf("Get() #%d = %+v, want nil", i+1, item)
			}
		}
		// The expired read deleted the record, so even an earlier clock sees nothing.
		item, err := s.Get(ctx, "kitchen", baseTime)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if item != nil {
			t.Errorf("Get() after self-heal = %+v, want nil", item)
		}
	})

	t.Run("expiry is inclusive", func(t *testing.T) {
		s := newStore(t, opts)
		if err := s.Set(ctx, "kitchen", vacuum, baseTime); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		item, err := s.Get(ctx, "kitchen", baseTime.Add(ttl))
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if item != nil {
			t.Errorf("Get() at ExpiresAt = %+v, want nil", item)
		}
	})

	t.Run("consume returns the item once", func(t *testing.T) {
		s := newStore(t, opts)
		if err := s.Set(ctx, "kitchen", vacuum, baseTime); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		first, err := s.Consume(ctx, "kitchen", baseTime.Add(time.Second))
		if err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
		if first == nil || first.Action != vacuum {
			t.Fatalf("Consume() = %+v, want vacuum item", first)
		}
		second, err := s.Consume(ctx, "kitchen", baseTime.Add(2*time.Second))
		if err != nil {
			t.Fatalf("second Consume() error = %v", err)
		}
		if second != nil {
			t.Errorf("second Consume() = %+v, want nil", second)
		}
	})

	t.Run("consume expired", func(t *testing.T) {
		s := newStore(t, opts)
		if err := s.Set(ctx, "kitchen", vacuum, baseTime); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		item, err := s.Consume(ctx, "kitchen", baseTime.Add(ttl+time.Second))
		if err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
		if item != nil {
			t.Errorf("Consume() = %+v, want nil", item)
		}
	})

	t.Run("set overwrites", func(t *testing.T) {
		s := newStore(t, opts)
		turbo := domain.StartRobot{Robot: "vacuum", Mode: "turbo"}
		if err := s.Set(ctx, "kitchen", vacuum, baseTime); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := s.Set(ctx, "kitchen", turbo, baseTime.Add(time.Second)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		item, err := s.Consume(ctx, "kitchen", baseTime.Add(2*time.Second))
		if err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
		if item == nil || item.Action != turbo {
			t.Fatalf("Consume() = %+v, want turbo", item)
		}
		if item, _ := s.Get(ctx, "kitchen", baseTime.Add(2*time.Second)); item != nil {
			t.Errorf("a second pending item survived: %+v", item)
		}
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t, opts)
		if err := s.Clear(ctx, "never-set"); err != nil {
			t.Fatalf("Clear() on absent item error = %v", err)
		}
		if err := s.Set(ctx, "kitchen", vacuum, baseTime); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := s.Clear(ctx, "kitchen"); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if item, _ := s.Get(ctx, "kitchen", baseTime); item != nil {
			t.Errorf("Get() after Clear() = %+v, want nil", item)
		}
	})

	t.Run("conversations are independent", func(t *testing.T) {
		s := newStore(t, opts)
		if err := s.Set(ctx, "kitchen", vacuum, baseTime); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if item, _ := s.Get(ctx, "bedroom", baseTime); item != nil {
			t.Errorf("bedroom sees kitchen item: %+v", item)
		}
		if err := s.Clear(ctx, "bedroom"); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if item, _ := s.Get(ctx, "kitchen", baseTime); item == nil {
			t.Error("kitchen item lost after clearing bedroom")
		}
	})

	t.Run("set and consume survive a cancelled context", func(t *testing.T) {
		s := newStore(t, opts)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		if err := s.Set(cancelled, "kitchen", vacuum, baseTime); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		item, err := s.Get(ctx, "kitchen", baseTime)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if item == nil {
			t.Fatal("Get() = nil, want the item written under a cancelled context")
		}

		item, err = s.Consume(cancelled, "kitchen", baseTime)
		if err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
		if item == nil {
			t.Fatal("Consume() = nil, want item")
		}
		if item, _ := s.Get(ctx, "kitchen", baseTime); item != nil {
			t.Errorf("Get() after Consume = %+v, want nil", item)
		}
	})

	t.Run("sweep removes only expired items", func(t *testing.T) {
		s := newStore(t, opts)
		if err := s.Set(ctx, "old", vacuum, baseTime); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := s.Set(ctx, "fresh", vacuum, baseTime.Add(ttl)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		n, err := s.Sweep(ctx, baseTime.Add(ttl+time.Millisecond))
		if err != nil {
			t.Fatalf("Sweep() error = %v", err)
		}
		if n != 1 {
			t.Errorf("Sweep() = %d, want 1", n)
		}
		if item, _ := s.Get(ctx, "fresh", baseTime.Add(ttl+time.Second)); item == nil {
			t.Error("fresh item swept")
		}
	})
}

func message(role domain.Role, content string, ts time.Time) domain.MemoryMessage {
	return domain.MemoryMessage{Timestamp: ts, Role: role, Content: content}
}

// RunMemoryStoreTests runs the conversation memory contract against newStore.
func RunMemoryStoreTests(t *testing.T, newStore MemoryFactory) {
	ctx := context.Background()

	t.Run("empty conversation", func(t *testing.T) {
		s := newStore(t, storage.Options{})
		msgs, err := s.LoadRecent(ctx, "nobody", baseTime)
		if err != nil {
			t.Fatalf("LoadRecent() error = %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("LoadRecent() = %v, want empty", msgs)
		}
	})

	t.Run("keeps the last N in order", func(t *testing.T) {
		const max = 4
		s := newStore(t, storage.Options{MaxMessages: max, MemoryTTL: time.Hour})

		now := baseTime
		for i := 0; i < 10; i++ {
			now = baseTime.Add(time.Duration(i) * time.Second)
			role := domain.RoleUser
			if i%2 == 1 {
				role = domain.RoleAssistant
			}
			if err := s.Append(ctx, "kitchen", message(role, fmt.Sprintf("m%d", i), now), now); err != nil {
				t.Fatalf("Append(%d) error = %v", i, err)
			}
		}

		msgs, err := s.LoadRecent(ctx, "kitchen", now)
		if err != nil {
			t.Fatalf("LoadRecent() error = %v", err)
		}
		if len(msgs) != max {
			t.Fatalf("len(LoadRecent()) = %d, want %d", len(msgs), max)
		}
		for i, m := range msgs {
			want := fmt.Sprintf("m%d", 10-max+i)
			if m.Content != want {
				t.Errorf("msgs[%d] = %q, want %q", i, m.Content, want)
			}
		}
		if msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
			t.Errorf("roles not preserved: %v, %v", msgs[0].Role, msgs[1].Role)
		}
	})

	t.Run("window excludes old turns", func(t *testing.T) {
		s := newStore(t, storage.Options{MemoryTTL: time.Hour})

		old := baseTime.Add(-2 * time.Hour)
		if err := s.Append(ctx, "kitchen", message(domain.RoleUser, "old", old), old); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if err := s.Append(ctx, "kitchen", message(domain.RoleUser, "new", baseTime), baseTime); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		msgs, err := s.LoadRecent(ctx, "kitchen", baseTime)
		if err != nil {
			t.Fatalf("LoadRecent() error = %v", err)
		}
		if len(msgs) != 1 || msgs[0].Content != "new" {
			t.Errorf("LoadRecent() = %v, want only the new turn", msgs)
		}

		later := baseTime.Add(2 * time.Hour)
		msgs, err = s.LoadRecent(ctx, "kitchen", later)
		if err != nil {
			t.Fatalf("LoadRecent() error = %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("LoadRecent() two hours later = %v, want empty", msgs)
		}
	})

	t.Run("append never loses a recent turn", func(t *testing.T) {
		const max = 3
		s := newStore(t, storage.Options{MaxMessages: max, MemoryTTL: time.Hour})

		for i := 0; i < 7; i++ {
			now := baseTime.Add(time.Duration(i) * time.Minute)
			content := fmt.Sprintf("turn %d", i)
			if err := s.Append(ctx, "kitchen", message(domain.RoleUser, content, now), now); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			msgs, err := s.LoadRecent(ctx, "kitchen", now)
			if err != nil {
				t.Fatalf("LoadRecent() error = %v", err)
			}
			if len(msgs) == 0 || msgs[len(msgs)-1].Content != content {
				t.Fatalf("after append %d, last = %v", i, msgs)
			}
			if len(msgs) > max {
				t.Fatalf("after append %d, len = %d > %d", i, len(msgs), max)
			}
		}
	})

	t.Run("append survives a cancelled context", func(t *testing.T) {
		s := newStore(t, storage.Options{})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		if err := s.Append(cancelled, "kitchen", message(domain.RoleUser, "turn on the light", baseTime), baseTime); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		msgs, err := s.LoadRecent(ctx, "kitchen", baseTime)
		if err != nil {
			t.Fatalf("LoadRecent() error = %v", err)
		}
		if len(msgs) != 1 || msgs[0].Content != "turn on the light" {
			t.Errorf("LoadRecent() = %v, want the appended message", msgs)
		}
	})

	t.Run("zero timestamp takes now", func(t *testing.T) {
		s := newStore(t, storage.Options{})
		if err := s.Append(ctx, "kitchen", domain.MemoryMessage{Role: domain.RoleUser, Content: "hi"}, baseTime); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		msgs, err := s.LoadRecent(ctx, "kitchen", baseTime)
		if err != nil {
			t.Fatalf("LoadRecent() error = %v", err)
		}
		if len(msgs) != 1 || !msgs[0].Timestamp.Equal(baseTime) {
			t.Errorf("LoadRecent() = %v", msgs)
		}
	})

	t.Run("conversations are independent", func(t *testing.T) {
		s := newStore(t, storage.Options{})
		if err := s.Append(ctx, "kitchen", message(domain.RoleUser, "k", baseTime), baseTime); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		msgs, err := s.LoadRecent(ctx, "bedroom", baseTime)
		if err != nil {
			t.Fatalf("LoadRecent() error = %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("bedroom sees kitchen memory: %v", msgs)
		}
	})
}
