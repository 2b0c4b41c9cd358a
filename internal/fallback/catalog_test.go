package fallback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/ports"
)

type fakeHA struct {
	calls    atomic.Int32
	services []ports.DomainServices
	err      error
	gate     chan struct{}

	// honorCtx fails the fetch when ctx is done after the gate opens.
	honorCtx bool
}

func (f *fakeHA) CallService(ctx context.Context, req ports.ServiceCallRequest) (*ports.HAResponse, error) {
	return &ports.HAResponse{Status: 200}, nil
}

func (f *fakeHA) GetServices(ctx context.Context) ([]ports.DomainServices, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.honorCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return f.services, f.err
}

func testCatalog() []ports.DomainServices {
	return []ports.DomainServices{
		{Domain: "vacuum", Services: map[string]ports.ServiceInfo{"start": {Name: "Start"}}},
		{Domain: "light", Services: map[string]ports.ServiceInfo{
			"turn_on":  {Name: "Turn on", Fields: map[string]ports.ServiceField{"brightness_pct": {Name: "Brightness"}}},
			"turn_off": {Name: "Turn off"},
		}},
	}
}

func TestCatalog_CachesWithinTTL(t *testing.T) {
	ha := &fakeHA{services: testCatalog()}
	c := NewCatalog(ha, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := c.Services(context.Background()); err != nil {
			t.Fatalf("Services() error = %v", err)
		}
	}
	if n := ha.calls.Load(); n != 1 {
		t.Errorf("GetServices calls = %d, want 1", n)
	}
}

func TestCatalog_RefetchesAfterTTL(t *testing.T) {
	ha := &fakeHA{services: testCatalog()}
	c := NewCatalog(ha, 20*time.Millisecond)

	if _, err := c.Services(context.Background()); err != nil {
		t.Fatalf("Services() error = %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := c.Services(context.Background()); err != nil {
		t.Fatalf("Services() error = %v", err)
	}
	if n := ha.calls.Load(); n != 2 {
		t.Errorf("GetServices calls = %d, want 2", n)
	}
}

func TestCatalog_ConcurrentMissesShareFetch(t *testing.T) {
	ha := &fakeHA{services: testCatalog(), gate: make(chan struct{})}
	c := NewCatalog(ha, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Services(context.Background()); err != nil {
				t.Errorf("Services() error = %v", err)
			}
		}()
	}
	for ha.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(ha.gate)
	wg.Wait()

	if n := ha.calls.Load(); n != 1 {
		t.Errorf("GetServices calls = %d, want 1", n)
	}
}

func TestCatalog_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	ha := &fakeHA{services: testCatalog(), gate: make(chan struct{}), honorCtx: true}
	c := NewCatalog(ha, time.Minute)

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Services(first)
		firstDone <- err
	}()
	for ha.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	secondDone := make(chan error, 1)
	go func() {
		_, err := c.Services(context.Background())
		secondDone <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	close(ha.gate)

	if err := <-secondDone; err != nil {
		t.Errorf("waiter Services() error = %v", err)
	}
	if err := <-firstDone; err != nil {
		t.Errorf("cancelled caller Services() error = %v", err)
	}
	if n := ha.calls.Load(); n != 1 {
		t.Errorf("GetServices calls = %d, want 1", n)
	}
}

func TestCatalog_ErrorsAreNotCached(t *testing.T) {
	ha := &fakeHA{err: errors.New("unreachable")}
	c := NewCatalog(ha, time.Minute)

	if _, err := c.Services(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	ha.err = nil
	ha.services = testCatalog()
	if _, err := c.Services(context.Background()); err != nil {
		t.Fatalf("Services() error = %v", err)
	}
	if n := ha.calls.Load(); n != 2 {
		t.Errorf("GetServices calls = %d, want 2", n)
	}
}

func TestCatalog_Lookup(t *testing.T) {
	c := NewCatalog(&fakeHA{services: testCatalog()}, time.Minute)

	info, ok, err := c.Lookup(context.Background(), "light", "turn_on")
	if err != nil || !ok {
		t.Fatalf("Lookup() = %v, %v", ok, err)
	}
	if _, ok := info.Fields["brightness_pct"]; !ok {
		t.Errorf("Fields = %v", info.Fields)
	}

	if _, ok, _ := c.Lookup(context.Background(), "light", "toggle"); ok {
		t.Error("unknown service found")
	}
	if _, ok, _ := c.Lookup(context.Background(), "climate", "turn_on"); ok {
		t.Error("unknown domain found")
	}
}

func TestCompactIndex(t *testing.T) {
	got := compactIndex(testCatalog())
	want := "Home Assistant service index (domain: services). Use select_service to get one service's fields.\n" +
		"light: turn_off, turn_on\n" +
		"vacuum: start"
	if got != want {
		t.Errorf("compactIndex() =\n%s\nwant\n%s", got, want)
	}
	if compactIndex(nil) != "" {
		t.Error("empty catalog should produce no index")
	}
}
