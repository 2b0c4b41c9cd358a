package janitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/storage"
	"github.com/tjfontaine/jarvis/internal/storage/memory"
)

type failingStore struct {
	ports.PendingStore
}

func (failingStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, errors.New("disk full")
}

func TestNew_InvalidSchedule(t *testing.T) {
	if _, err := New(memory.New(storage.Options{}), "every so often", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestJanitor_Sweep(t *testing.T) {
	ctx := context.Background()
	store := memory.New(storage.Options{PendingTTL: time.Minute})
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b"} {
		if err := store.Set(ctx, id, domain.StartRobot{Robot: "vacuum"}, t0); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Set(ctx, "fresh", domain.StartRobot{Robot: "vacuum"}, t0.Add(90*time.Second)); err != nil {
		t.Fatal(err)
	}

	j, err := New(store, "", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	j.now = func() time.Time { return t0.Add(2 * time.Minute) }

	if n := j.Sweep(ctx); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
	item, err := store.Get(ctx, "fresh", t0.Add(2*time.Minute))
	if err != nil || item == nil {
		t.Errorf("fresh item swept: %v, %v", item, err)
	}
}

func TestJanitor_SweepError(t *testing.T) {
	j, err := New(failingStore{}, DefaultSchedule, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := j.Sweep(context.Background()); n != 0 {
		t.Errorf("Sweep() = %d", n)
	}
}

func TestJanitor_StartStop(t *testing.T) {
	j, err := New(memory.New(storage.Options{}), "@every 10ms", nil)
	if err != nil {
		t.Fatal(err)
	}
	j.Start()
	time.Sleep(30 * time.Millisecond)
	j.Stop()
}
