package skills

import (
	"context"
	"strings"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// Ping answers "pong"; it is the liveness check of the routing pipeline.
type Ping struct{}

func (Ping) Name() string { return "ping" }

func (Ping) Match(in domain.Input) Match {
	t := strings.ToLower(strings.TrimSpace(in.Text))
	switch {
	case t == "ping" || t == "/ping":
		return Match{Score: 1, Intent: "ping"}
	case strings.Contains(t, "ping"):
		return Match{Score: 0.6, Intent: "ping"}
	}
	return NoMatch
}

func (Ping) Run(_ context.Context, _ domain.Input, rc *RunContext) (*Outcome, error) {
	return &Outcome{
		Intent: "ping",
		Result: map[string]any{
			"message":   "pong",
			"requestId": rc.RequestID,
			"timestamp": rc.Now.UTC().Format(time.RFC3339Nano),
		},
		Actions: domain.Actions{},
	}, nil
}
