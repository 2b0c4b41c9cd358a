package tokens

import (
	"strings"
	"testing"

	"github.com/tjfontaine/jarvis/internal/core/ports"
)

func TestCounter_Count(t *testing.T) {
	c := NewCounter("gpt-4o-mini")

	tests := []struct {
		name      string
		text      string
		minTokens int
		maxTokens int
	}{
		{"empty", "", 0, 0},
		{"short english", "turn on the kitchen light", 4, 8},
		{"french", "allume la lumière de la cuisine", 5, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Count(tt.text)
			if got < tt.minTokens || got > tt.maxTokens {
				t.Errorf("Count(%q) = %d, want in [%d, %d]", tt.text, got, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestCounter_CountMessageOverhead(t *testing.T) {
	c := NewCounter("gpt-4o")
	m := ports.ChatMessage{Role: ports.ChatRoleUser, Content: "hello"}
	if got, want := c.CountMessage(m), c.Count("hello")+tokensPerMessage+tokensPerRole; got != want {
		t.Errorf("CountMessage() = %d, want %d", got, want)
	}
}

func TestCounter_Trim(t *testing.T) {
	c := NewCounter("gpt-4o")
	long := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	msgs := []ports.ChatMessage{
		{Role: ports.ChatRoleUser, Content: long},
		{Role: ports.ChatRoleAssistant, Content: long},
		{Role: ports.ChatRoleUser, Content: "ok"},
		{Role: ports.ChatRoleAssistant, Content: "fine"},
	}

	got := c.Trim(msgs, 30)
	if len(got) != 2 || got[0].Content != "ok" {
		t.Errorf("Trim() kept %d messages starting with %.10q", len(got), got[0].Content)
	}

	if got := c.Trim(msgs, 0); len(got) != len(msgs) {
		t.Errorf("Trim(budget=0) = %d messages, want all", len(got))
	}

	single := c.Trim(msgs[:1], 1)
	if len(single) != 1 {
		t.Errorf("Trim() dropped the newest message")
	}
}

func TestModelToEncoding(t *testing.T) {
	tests := map[string]string{
		"gpt-4o-mini":   "o200k_base",
		"gpt-4-turbo":   "cl100k_base",
		"gpt-3.5-turbo": "cl100k_base",
		"llama3.1":      "o200k_base",
	}
	for model, want := range tests {
		if got := string(modelToEncoding(model)); got != want {
			t.Errorf("modelToEncoding(%q) = %s, want %s", model, got, want)
		}
	}
}
