package skills

import (
	"context"
	"strings"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/textnorm"
)

// Weather plans a weather.query action for current conditions or a forecast.
type Weather struct{}

func (Weather) Name() string { return "weather" }

func detectWhen(text string) domain.WeatherWhen {
	t := textnorm.Normalize(text)
	switch {
	case textnorm.ContainsAny(t, "demain", "tomorrow"):
		return domain.WeatherTomorrow
	case textnorm.ContainsAny(t, "semaine", "7 jours", "sept jours", "week"):
		return domain.WeatherWeek
	case textnorm.ContainsAny(t, "aujourd hui", "auj", "today"):
		return domain.WeatherToday
	}
	return domain.WeatherNow
}

// "temps" is too ambiguous in French to count as a weather question.
func looksLikeWeatherQuestion(text string) bool {
	t := textnorm.Normalize(text)
	return textnorm.ContainsAny(t,
		"meteo", "weather", "forecast", "prevision", "temperature",
		"pluie", "pleut", "orage", "neige", "vent")
}

func explicitWeatherEntity(text string) string {
	args := parseKeyValueArgs(strings.TrimSpace(text))
	for _, key := range []string{"entity", "entity_id", "weather", "meteo"} {
		if v, ok := args[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (Weather) Match(in domain.Input) Match {
	if !looksLikeWeatherQuestion(in.Text) {
		return NoMatch
	}
	return Match{Score: 0.62, Intent: "weather." + string(detectWhen(in.Text))}
}

func (Weather) Run(_ context.Context, in domain.Input, _ *RunContext) (*Outcome, error) {
	when := detectWhen(in.Text)
	entityID := explicitWeatherEntity(in.Text)

	message := "OK, je récupère la météo depuis Home Assistant."
	var entity any
	if entityID != "" {
		message = "OK, je récupère la météo via " + entityID + "."
		entity = entityID
	}

	return &Outcome{
		Intent: "weather." + string(when),
		Result: map[string]any{
			"planned":  true,
			"when":     string(when),
			"entityId": entity,
			"message":  message,
		},
		Actions: domain.Actions{domain.WeatherQuery{When: when, EntityID: entityID}},
	}, nil
}
