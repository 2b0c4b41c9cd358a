package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// RoutedResult is what routing an utterance produced. Intent is a dotted
// label (e.g. "lights.on", "llm.actions.<intent>") used for observability.
type RoutedResult struct {
	Skill   string         `json:"skill"`
	Intent  string         `json:"intent"`
	Result  map[string]any `json:"result"`
	Actions Actions        `json:"actions"`
}

// ExecutionStatus is the outcome of one executed action.
type ExecutionStatus string

const (
	StatusExecuted ExecutionStatus = "executed"
	StatusSkipped  ExecutionStatus = "skipped"
	StatusFailed   ExecutionStatus = "failed"
)

// ExecutedAction pairs an action with its execution outcome.
type ExecutedAction struct {
	Action Action          `json:"-"`
	Status ExecutionStatus `json:"status"`
	Output any             `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (e ExecutedAction) MarshalJSON() ([]byte, error) {
	action, err := MarshalAction(e.Action)
	if err != nil {
		return nil, err
	}
	type alias ExecutedAction
	return json.Marshal(struct {
		Action json.RawMessage `json:"action"`
		alias
	}{Action: action, alias: alias(e)})
}

// Input is one utterance with its opaque request context.
type Input struct {
	Text    string         `json:"text"`
	Context map[string]any `json:"context,omitempty"`
}

// DefaultConversationID is used when the request context names no conversation.
const DefaultConversationID = "default"

var conversationKeys = []string{"conversationId", "sessionId", "deviceId", "userId"}

// ConversationID derives the partition key of the stateful stores from a
// request context. The first non-blank string among conversationId,
// sessionId, deviceId and userId wins.
func ConversationID(ctx map[string]any) string {
	for _, key := range conversationKeys {
		if v, ok := ctx[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return DefaultConversationID
}

// PendingItem is an action awaiting an explicit yes/no from the user.
type PendingItem struct {
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Action    Action    `json:"-"`
}

// Expired reports whether the item must be treated as absent at now.
func (p *PendingItem) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

func (p PendingItem) MarshalJSON() ([]byte, error) {
	action, err := MarshalAction(p.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		CreatedAt time.Time       `json:"createdAt"`
		ExpiresAt time.Time       `json:"expiresAt"`
		Action    json.RawMessage `json:"action"`
	}{p.CreatedAt, p.ExpiresAt, action})
}

func (p *PendingItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		CreatedAt time.Time       `json:"createdAt"`
		ExpiresAt time.Time       `json:"expiresAt"`
		Action    json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.CreatedAt.IsZero() || raw.ExpiresAt.IsZero() {
		return ErrMalformedRecord
	}
	action, err := UnmarshalAction(raw.Action)
	if err != nil {
		return err
	}
	p.CreatedAt = raw.CreatedAt
	p.ExpiresAt = raw.ExpiresAt
	p.Action = action
	return nil
}

// Role is the speaker of a remembered turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MemoryMessage is one remembered conversation turn.
type MemoryMessage struct {
	Timestamp time.Time `json:"ts"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
}

// Valid reports whether a decoded record is usable.
func (m *MemoryMessage) Valid() bool {
	if m.Timestamp.IsZero() {
		return false
	}
	return m.Role == RoleUser || m.Role == RoleAssistant
}
