package skills

import (
	"context"
	"regexp"
	"strings"

	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// Music plans music.play_request actions.
type Music struct{}

func (Music) Name() string { return "music" }

var playPrefix = regexp.MustCompile(`(?i)^\s*(play|joue)\s+(music\s+)?`)

func (Music) Match(in domain.Input) Match {
	t := strings.ToLower(strings.TrimSpace(in.Text))
	switch {
	case strings.HasPrefix(t, "play "), strings.HasPrefix(t, "joue "):
		return Match{Score: 0.7, Intent: "music.play"}
	case strings.Contains(t, "music"), strings.Contains(t, "musique"):
		return Match{Score: 0.5, Intent: "music.plan"}
	}
	return NoMatch
}

func (Music) Run(_ context.Context, in domain.Input, rc *RunContext) (*Outcome, error) {
	query := strings.TrimSpace(playPrefix.ReplaceAllString(in.Text, ""))

	actions := domain.Actions{}
	if query != "" {
		actions = append(actions, domain.PlayMusic{Query: query})
	}
	return &Outcome{
		Intent: "music.play",
		Result: map[string]any{
			"message":   "Music request planned.",
			"query":     query,
			"requestId": rc.RequestID,
		},
		Actions: actions,
	}, nil
}
