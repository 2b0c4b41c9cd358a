// Package skills defines the matcher/executor contract every command category
// implements and the built-in skills of the assistant.
package skills

import (
	"context"
	"math"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
)

// Match is a skill's interest in an utterance. A score of 0 means no interest.
type Match struct {
	Score  float64
	Intent string
}

// NoMatch is returned by skills that do not handle an utterance.
var NoMatch = Match{}

// Outcome is what running a skill produced.
type Outcome struct {
	Intent  string
	Result  map[string]any
	Actions domain.Actions
}

// PendingSetter stores an action that needs an explicit yes before it runs.
type PendingSetter interface {
	Set(ctx context.Context, conversationID string, action domain.Action, now time.Time) error
}

// RunContext carries the per-request collaborators a skill may use.
type RunContext struct {
	RequestID      string
	ConversationID string
	Now            time.Time
	Execute        bool
	Aliases        map[string]string
	HA             ports.HomeAssistant
	Pending        PendingSetter
}

// Skill is one category of command. Match must be pure and cheap; Run may
// perform I/O.
type Skill interface {
	Name() string
	Match(in domain.Input) Match
	Run(ctx context.Context, in domain.Input, rc *RunContext) (*Outcome, error)
}

// sanitizeScore maps non-finite and negative scores to 0.
func sanitizeScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return 0
	}
	return score
}
