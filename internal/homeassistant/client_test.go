package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/testutil"
)

func TestClient_CallService(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"entity_id":"light.kitchen","state":"on"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "secret")
	resp, err := c.CallService(context.Background(), ports.ServiceCallRequest{
		Domain:      "light",
		Service:     "turn_on",
		Target:      map[string]any{"entity_id": "light.kitchen"},
		ServiceData: map[string]any{"brightness_pct": 40, "entity_id": "light.other"},
	})
	if err != nil {
		t.Fatalf("CallService() error = %v", err)
	}

	if gotPath != "/api/services/light/turn_on" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["entity_id"] != "light.kitchen" || gotBody["brightness_pct"] != float64(40) {
		t.Errorf("body = %v", gotBody)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d", resp.Status)
	}
	if states, ok := resp.Data.([]any); !ok || len(states) != 1 {
		t.Errorf("Data = %#v", resp.Data)
	}
}

func TestClient_CallServiceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Service not found.", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "secret").CallService(context.Background(),
		ports.ServiceCallRequest{Domain: "light", Service: "explode"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest || statusErr.Body != "Service not found." {
		t.Errorf("StatusError = %+v", statusErr)
	}
}

func TestClient_CallServiceTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := New(srv.URL, "secret").CallService(context.Background(),
		ports.ServiceCallRequest{Domain: "script", Service: "good_night"})
	if err != nil {
		t.Fatalf("CallService() error = %v", err)
	}
	if resp.Data != "ok" {
		t.Errorf("Data = %#v, want \"ok\"", resp.Data)
	}
}

func TestClient_CallServiceRequiresDomain(t *testing.T) {
	if _, err := New("http://unused", "secret").CallService(context.Background(), ports.ServiceCallRequest{Service: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", WithTimeout(50*time.Millisecond))
	if _, err := c.GetServices(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_GetServices(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "ha_get_services")
	defer cleanup()

	c := New("http://homeassistant.local:8123", "test-token",
		WithHTTPClient(testutil.VCRHTTPClient(recorder)))

	catalog, err := c.GetServices(context.Background())
	if err != nil {
		t.Fatalf("GetServices() error = %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("len(catalog) = %d, want 2", len(catalog))
	}

	light := catalog[0]
	if light.Domain != "light" {
		t.Fatalf("Domain = %s", light.Domain)
	}
	turnOn, ok := light.Services["turn_on"]
	if !ok {
		t.Fatal("light.turn_on missing")
	}
	if _, ok := turnOn.Fields["brightness_pct"]; !ok {
		t.Errorf("fields = %v", turnOn.Fields)
	}
	if turnOn.Target == nil {
		t.Error("target selector missing")
	}
}
