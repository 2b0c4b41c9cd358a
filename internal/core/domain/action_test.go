package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestUnmarshalAction_Variants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ActionType
	}{
		{"service call", `{"type":"home_assistant.service_call","domain":"light","service":"turn_on","target":{"entity_id":"light.kitchen"}}`, ActionServiceCall},
		{"add task", `{"type":"todo.add_task","title":"buy milk"}`, ActionAddTask},
		{"music", `{"type":"music.play_request","query":"daft punk"}`, ActionPlayMusic},
		{"media", `{"type":"plex.play_request","query":"alien"}`, ActionPlayMedia},
		{"robot", `{"type":"robot.start","robot":"vacuum"}`, ActionStartRobot},
		{"timer", `{"type":"timer.requested","seconds":300,"requestedAt":"2026-01-01T10:00:00Z"}`, ActionTimerRequest},
		{"weather", `{"type":"weather.query","when":"tomorrow"}`, ActionWeatherQuery},
		{"connector", `{"type":"connector.request","connector":"email","operation":"summarize","params":{"limit":5}}`, ActionConnectorRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := UnmarshalAction([]byte(tt.raw))
			if err != nil {
				t.Fatalf("UnmarshalAction() error = %v", err)
			}
			if a.Type() != tt.want {
				t.Errorf("Type() = %q, want %q", a.Type(), tt.want)
			}
		})
	}
}

func TestUnmarshalAction_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		msg  string
	}{
		{"missing type", `{"domain":"light"}`, "missing type"},
		{"unknown type", `{"type":"door.open"}`, "unknown type"},
		{"service without domain", `{"type":"home_assistant.service_call","service":"turn_on"}`, "domain and service"},
		{"bad connector", `{"type":"connector.request","connector":"fax","operation":"list"}`, "unsupported connector"},
		{"bad operation", `{"type":"connector.request","connector":"sms","operation":"delete"}`, "unsupported operation"},
		{"bad when", `{"type":"weather.query","when":"yesterday"}`, "unsupported when"},
		{"zero timer", `{"type":"timer.requested","seconds":0}`, "seconds must be positive"},
		{"not an object", `[1,2]`, "invalid action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalAction([]byte(tt.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.msg)
			}
		})
	}
}

func TestMarshalAction_CarriesType(t *testing.T) {
	b, err := MarshalAction(StartRobot{Robot: "vacuum", Mode: "auto"})
	if err != nil {
		t.Fatalf("MarshalAction() error = %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m["type"] != "robot.start" || m["robot"] != "vacuum" || m["mode"] != "auto" {
		t.Errorf("unexpected encoding: %s", b)
	}
}

func TestActions_KeepsConnectorRequestsSeparate(t *testing.T) {
	raw := `[
		{"type":"connector.request","connector":"email","operation":"summarize"},
		{"type":"connector.request","connector":"email","operation":"read_latest"}
	]`

	var as Actions
	if err := json.Unmarshal([]byte(raw), &as); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(as) != 2 {
		t.Fatalf("len = %d, want 2", len(as))
	}
	first := as[0].(ConnectorRequest)
	second := as[1].(ConnectorRequest)
	if first.Operation != OperationSummarize || second.Operation != OperationReadLatest {
		t.Errorf("operations = %q, %q", first.Operation, second.Operation)
	}
}

func TestConversationID(t *testing.T) {
	tests := []struct {
		name string
		ctx  map[string]any
		want string
	}{
		{"nil context", nil, "default"},
		{"conversation wins", map[string]any{"conversationId": "c", "sessionId": "s"}, "c"},
		{"blank skipped", map[string]any{"conversationId": "  ", "deviceId": "kitchen"}, "kitchen"},
		{"non string skipped", map[string]any{"sessionId": 42, "userId": "u"}, "u"},
		{"nothing usable", map[string]any{"other": "x"}, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConversationID(tt.ctx); got != tt.want {
				t.Errorf("ConversationID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPendingItem_JSON(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	item := PendingItem{CreatedAt: now, ExpiresAt: now.Add(2 * time.Minute), Action: StartRobot{Robot: "vacuum"}}

	b, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got PendingItem
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Action != (StartRobot{Robot: "vacuum"}) {
		t.Errorf("Action = %#v", got.Action)
	}
	if got.Expired(now.Add(time.Minute)) {
		t.Error("item should not be expired before ExpiresAt")
	}
	if !got.Expired(now.Add(2 * time.Minute)) {
		t.Error("item should be expired at ExpiresAt")
	}

	if err := json.Unmarshal([]byte(`{"action":{"type":"robot.start","robot":"x"}}`), &got); err == nil {
		t.Error("expected error for record without timestamps")
	}
}
