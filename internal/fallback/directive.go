package fallback

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// DirectiveType is the variant of a model response.
type DirectiveType string

const (
	DirectiveChat          DirectiveType = "chat"
	DirectiveCommand       DirectiveType = "command"
	DirectiveActions       DirectiveType = "actions"
	DirectiveSelectService DirectiveType = "select_service"
)

// Directive is a parsed, schema-valid model response.
type Directive struct {
	Type DirectiveType

	// Text is the reply for chat and the rewritten utterance for command.
	Text string

	// Intent, Message and Actions are set for actions.
	Intent  string
	Message string
	Actions domain.Actions

	// Domain and Service are set for select_service.
	Domain  string
	Service string
}

// Chat returns a chat directive with text trimmed.
func Chat(text string) Directive {
	return Directive{Type: DirectiveChat, Text: strings.TrimSpace(text)}
}

// ParseDirective never fails: a response that is not valid JSON, does not
// satisfy the directive schema or carries an undecodable action becomes a
// chat directive holding the raw text.
func ParseDirective(raw string) Directive {
	d, err := parseDirective(raw)
	if err != nil {
		return Chat(raw)
	}
	return d
}

func parseDirective(raw string) (Directive, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Directive{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := directiveSchema.Validate(doc); err != nil {
		return Directive{}, fmt.Errorf("schema: %w", err)
	}

	var body struct {
		Type    DirectiveType  `json:"type"`
		Text    string         `json:"text"`
		Intent  string         `json:"intent"`
		Message string         `json:"message"`
		Actions domain.Actions `json:"actions"`
		Domain  string         `json:"domain"`
		Service string         `json:"service"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return Directive{}, err
	}

	switch body.Type {
	case DirectiveChat, DirectiveCommand:
		return Directive{Type: body.Type, Text: strings.TrimSpace(body.Text)}, nil
	case DirectiveActions:
		actions := body.Actions
		if actions == nil {
			actions = domain.Actions{}
		}
		return Directive{
			Type:    DirectiveActions,
			Intent:  strings.TrimSpace(body.Intent),
			Message: strings.TrimSpace(body.Message),
			Actions: actions,
		}, nil
	case DirectiveSelectService:
		return Directive{
			Type:    DirectiveSelectService,
			Domain:  strings.TrimSpace(body.Domain),
			Service: strings.TrimSpace(body.Service),
		}, nil
	}
	return Directive{}, fmt.Errorf("unknown directive type %q", body.Type)
}

// memoryContent is how the directive is remembered as an assistant turn.
func (d Directive) memoryContent() string {
	switch d.Type {
	case DirectiveCommand:
		return "CMD: " + d.Text
	case DirectiveActions:
		encoded, err := json.Marshal(d.Actions)
		if err != nil {
			encoded = []byte("[]")
		}
		return "ACTIONS: " + d.Intent + " " + string(encoded)
	case DirectiveSelectService:
		return "SELECT: " + d.Domain + "." + d.Service
	}
	return d.Text
}
