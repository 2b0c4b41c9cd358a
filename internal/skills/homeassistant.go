package skills

import (
	"context"
	"strings"

	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// HomeAssistant handles the explicit command grammar
// "ha: <domain>.<service> entity_id=<id> key=value ...".
type HomeAssistant struct{}

func (HomeAssistant) Name() string { return "home_assistant" }

type haCommand struct {
	domain  string
	service string
	args    map[string]any
}

// parseHACommand returns nil unless text is a complete explicit command
// naming an entity_id.
func parseHACommand(text string) *haCommand {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	var rest string
	switch {
	case strings.HasPrefix(lower, "ha:"):
		rest = strings.TrimSpace(trimmed[3:])
	case strings.HasPrefix(lower, "ha "):
		rest = strings.TrimSpace(trimmed[2:])
	default:
		return nil
	}

	first, tail, _ := strings.Cut(rest, " ")
	dom, svc, ok := strings.Cut(first, ".")
	dom, svc = strings.TrimSpace(dom), strings.TrimSpace(svc)
	if !ok || dom == "" || svc == "" {
		return nil
	}

	args := parseKeyValueArgs(tail)
	if id, ok := args["entity_id"].(string); !ok || id == "" {
		return nil
	}
	return &haCommand{domain: dom, service: svc, args: args}
}

func (HomeAssistant) Match(in domain.Input) Match {
	if cmd := parseHACommand(in.Text); cmd != nil {
		return Match{Score: 0.95, Intent: "ha." + cmd.domain + "." + cmd.service}
	}
	t := strings.ToLower(strings.TrimSpace(in.Text))
	if strings.Contains(t, "home assistant") || strings.HasPrefix(t, "ha:") || strings.HasPrefix(t, "ha ") {
		return Match{Score: 0.2, Intent: "ha.unknown"}
	}
	return NoMatch
}

// Run plans the service call; the executor performs it when execution is
// requested so a command is never sent twice.
func (HomeAssistant) Run(_ context.Context, in domain.Input, _ *RunContext) (*Outcome, error) {
	cmd := parseHACommand(in.Text)
	if cmd == nil {
		return &Outcome{
			Intent: "ha.unknown",
			Result: map[string]any{
				"message": "Home Assistant skill requires the explicit format.",
				"format":  "ha: <domain>.<service> entity_id=<entity_id> key=value ...",
				"example": "ha: light.turn_on entity_id=light.kitchen brightness_pct=40",
			},
			Actions: domain.Actions{},
		}, nil
	}

	entityID := cmd.args["entity_id"]
	serviceData := make(map[string]any, len(cmd.args))
	for k, v := range cmd.args {
		if k != "entity_id" {
			serviceData[k] = v
		}
	}
	if len(serviceData) == 0 {
		serviceData = nil
	}

	return &Outcome{
		Intent: "ha." + cmd.domain + "." + cmd.service,
		Result: map[string]any{
			"planned":  true,
			"service":  cmd.domain + "." + cmd.service,
			"entityId": entityID,
		},
		Actions: domain.Actions{domain.ServiceCall{
			Domain:      cmd.domain,
			Service:     cmd.service,
			Target:      map[string]any{"entity_id": entityID},
			ServiceData: serviceData,
		}},
	}, nil
}
