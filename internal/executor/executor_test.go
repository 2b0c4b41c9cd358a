package executor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
)

type fakeHA struct {
	calls []ports.ServiceCallRequest
	fail  map[string]error
}

func (f *fakeHA) CallService(ctx context.Context, req ports.ServiceCallRequest) (*ports.HAResponse, error) {
	f.calls = append(f.calls, req)
	if err := f.fail[req.Domain+"."+req.Service]; err != nil {
		return nil, err
	}
	return &ports.HAResponse{Status: 200, Data: []any{}}, nil
}

func (f *fakeHA) GetServices(ctx context.Context) ([]ports.DomainServices, error) {
	return nil, nil
}

func TestExecute(t *testing.T) {
	ha := &fakeHA{fail: map[string]error{"light.turn_off": errors.New("home assistant returned 500")}}
	e := New(ha, nil)

	actions := domain.Actions{
		domain.ServiceCall{Domain: "light", Service: "turn_on", Target: map[string]any{"entity_id": "light.kitchen"}},
		domain.AddTask{Title: "buy milk"},
		domain.ServiceCall{Domain: "light", Service: "turn_off", Target: map[string]any{"entity_id": "light.hall"}},
		domain.ServiceCall{Domain: "vacuum", Service: "start"},
	}

	got := e.Execute(context.Background(), actions)
	if len(got) != len(actions) {
		t.Fatalf("len = %d, want %d", len(got), len(actions))
	}

	want := []domain.ExecutionStatus{domain.StatusExecuted, domain.StatusSkipped, domain.StatusFailed, domain.StatusExecuted}
	for i, w := range want {
		if got[i].Status != w {
			t.Errorf("[%d] Status = %q, want %q", i, got[i].Status, w)
		}
		if got[i].Action.Type() != actions[i].Type() {
			t.Errorf("[%d] Action not kept in position", i)
		}
	}
	if !strings.Contains(got[2].Error, "500") {
		t.Errorf("Error = %q", got[2].Error)
	}
	if resp, ok := got[0].Output.(*ports.HAResponse); !ok || resp.Status != 200 {
		t.Errorf("Output = %#v", got[0].Output)
	}
	if len(ha.calls) != 3 {
		t.Errorf("CallService calls = %d, want 3", len(ha.calls))
	}
}

func TestExecute_WithoutHomeAssistant(t *testing.T) {
	got := New(nil, nil).Execute(context.Background(), domain.Actions{domain.ServiceCall{Domain: "light", Service: "turn_on"}})
	if got[0].Status != domain.StatusSkipped {
		t.Errorf("Status = %q", got[0].Status)
	}
}

func TestExecutedAction_JSON(t *testing.T) {
	ha := &fakeHA{}
	got := New(ha, nil).Execute(context.Background(), domain.Actions{domain.PlayMusic{Query: "jazz"}})

	b, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	action := decoded[0]["action"].(map[string]any)
	if decoded[0]["status"] != "skipped" || action["type"] != "music.play_request" {
		t.Errorf("encoded = %s", b)
	}
}
