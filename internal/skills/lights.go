package skills

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/textnorm"
)

// Lights turns aliased lights on or off. Aliases ("kitchen light") map to
// Home Assistant entity ids through RunContext.Aliases.
type Lights struct{}

func (Lights) Name() string { return "lights" }

var (
	percentPattern  = regexp.MustCompile(`\b(\d{1,3})\s*%`)
	aliasEnPattern  = regexp.MustCompile(`\b(turn on|turn off)\b\s+(.+?)\s+\b(light|lights)\b`)
	aliasFrPattern  = regexp.MustCompile(`\b(allume|eteins)\b\s+(.+?)\s+\b(lumiere|lumieres|lampe|lampes)\b`)
	aliasFrPattern2 = regexp.MustCompile(`\b(allume|eteins)\b\s+(la\s+|les\s+)?(lumiere|lumieres|lampe|lampes)\s+(du\s+|de\s+la\s+|de\s+l\s+)?([a-z0-9 ]+?)(\s+\d+)?$`)
)

func lightsPercent(text string) (int, bool) {
	m := percentPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 || n > 100 {
		return 0, false
	}
	return n, true
}

// lightsOnOff returns +1 for on, -1 for off, 0 when unknown.
func lightsOnOff(text string) int {
	t := textnorm.Normalize(text)
	switch {
	case textnorm.ContainsAny(t, "turn on", "allume"):
		return 1
	case textnorm.ContainsAny(t, "turn off", "eteins"):
		return -1
	}
	return 0
}

func lightsAlias(text string) string {
	t := textnorm.Normalize(text)
	if m := aliasEnPattern.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[2] + " light")
	}
	if m := aliasFrPattern.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[2] + " light")
	}
	if m := aliasFrPattern2.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[5] + " light")
	}
	return ""
}

func (Lights) Match(in domain.Input) Match {
	t := textnorm.Normalize(in.Text)
	if !textnorm.ContainsAny(t, "light", "lumiere", "lampe") {
		return NoMatch
	}
	switch lightsOnOff(in.Text) {
	case 1:
		return Match{Score: 0.6, Intent: "lights.on"}
	case -1:
		return Match{Score: 0.6, Intent: "lights.off"}
	}
	return Match{Score: 0.2, Intent: "lights.unknown"}
}

func (Lights) Run(_ context.Context, in domain.Input, rc *RunContext) (*Outcome, error) {
	onOff := lightsOnOff(in.Text)
	alias := lightsAlias(in.Text)

	var entityID string
	if alias != "" {
		entityID = rc.Aliases[alias]
		if entityID == "" {
			entityID = rc.Aliases[textnorm.Normalize(alias)]
		}
	}

	if onOff == 0 || entityID == "" {
		return &Outcome{
			Intent: "lights.unknown",
			Result: map[string]any{
				"message":        "Lights skill needs a known alias -> entity_id mapping.",
				"requiredConfig": "home_assistant.aliases",
				"exampleConfig":  map[string]string{"kitchen light": "light.kitchen"},
				"exampleCommand": "turn on kitchen light 40%",
			},
			Actions: domain.Actions{},
		}, nil
	}

	service := "turn_off"
	intent := "lights.off"
	if onOff > 0 {
		service = "turn_on"
		intent = "lights.on"
	}

	call := domain.ServiceCall{
		Domain:  "light",
		Service: service,
		Target:  map[string]any{"entity_id": entityID},
	}
	var brightness any
	if pct, ok := lightsPercent(in.Text); ok && onOff > 0 {
		call.ServiceData = map[string]any{"brightness_pct": pct}
		brightness = pct
	}

	return &Outcome{
		Intent: intent,
		Result: map[string]any{
			"planned":       true,
			"entityId":      entityID,
			"service":       "light." + service,
			"brightnessPct": brightness,
		},
		Actions: domain.Actions{call},
	}, nil
}
