package skills

import (
	"context"
	"regexp"
	"strings"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/textnorm"
)

// Plex plans plex.play_request actions for the media server.
type Plex struct{}

func (Plex) Name() string { return "plex" }

var (
	plexVerb = regexp.MustCompile(`(?i)^\s*(mets|met|lance|joue|play)\s+`)
	plexWord = regexp.MustCompile(`(?i)\bplex\b\s*`)
)

func plexQuery(text string) string {
	q := plexVerb.ReplaceAllString(text, "")
	q = plexWord.ReplaceAllString(q, "")
	q = strings.TrimSpace(q)
	// "sur plex" leaves a dangling preposition behind.
	q = strings.TrimSpace(strings.TrimSuffix(q, " sur"))
	return q
}

func (Plex) Match(in domain.Input) Match {
	if strings.Contains(textnorm.Normalize(in.Text), "plex") {
		return Match{Score: 0.75, Intent: "plex.play_request"}
	}
	return NoMatch
}

func (Plex) Run(_ context.Context, in domain.Input, rc *RunContext) (*Outcome, error) {
	query := plexQuery(in.Text)
	if query == "" {
		return &Outcome{
			Intent: "plex.ask",
			Result: map[string]any{
				"message":   "OK. Qu'est-ce que je dois lancer sur Plex ? Donne un lien Plex ou un titre.",
				"requestId": rc.RequestID,
			},
			Actions: domain.Actions{},
		}, nil
	}
	return &Outcome{
		Intent: "plex.play_request",
		Result: map[string]any{
			"message":   "OK.",
			"query":     query,
			"requestId": rc.RequestID,
		},
		Actions: domain.Actions{domain.PlayMedia{Query: query}},
	}, nil
}
