package skills

import (
	"context"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/textnorm"
)

// Time reports the current date and time.
type Time struct{}

func (Time) Name() string { return "time" }

func (Time) Match(in domain.Input) Match {
	t := textnorm.Normalize(in.Text)
	switch {
	case t == "time" || t == "now" || t == "date":
		return Match{Score: 0.9, Intent: "time.now"}
	case textnorm.ContainsAny(t, "what time", "current time"):
		return Match{Score: 0.8, Intent: "time.now"}
	case textnorm.ContainsAny(t, "quelle heure", "c est quoi l heure", "donne moi l heure", "il est quelle heure"):
		return Match{Score: 0.85, Intent: "time.now"}
	case textnorm.ContainsAny(t, "quelle date", "on est quel jour", "date"):
		return Match{Score: 0.7, Intent: "time.now"}
	case textnorm.ContainsAny(t, "time", "heure"):
		return Match{Score: 0.4, Intent: "time.now"}
	}
	return NoMatch
}

func (Time) Run(_ context.Context, _ domain.Input, rc *RunContext) (*Outcome, error) {
	return &Outcome{
		Intent: "time.now",
		Result: map[string]any{
			"iso":     rc.Now.UTC().Format(time.RFC3339Nano),
			"epochMs": rc.Now.UnixMilli(),
		},
		Actions: domain.Actions{},
	}, nil
}
