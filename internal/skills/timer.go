package skills

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// Timer plans timer.requested actions.
type Timer struct{}

func (Timer) Name() string { return "timer" }

var durationPattern = regexp.MustCompile(`\b(\d+)\s*(s|sec|secs|second|seconds|seconde|secondes|m|min|mins|minute|minutes|h|hr|hrs|hour|hours|heure|heures)\b`)

// maxTimerSeconds bounds a parsed duration; longer requests are ignored.
const maxTimerSeconds = math.MaxInt32

// parseDurationSeconds reads the first "<n> <unit>" in text. It returns 0
// when there is none or the duration exceeds maxTimerSeconds.
func parseDurationSeconds(text string) int {
	m := durationPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	unit := 1
	switch {
	case strings.HasPrefix(m[2], "h"):
		unit = 3600
	case strings.HasPrefix(m[2], "m"):
		unit = 60
	}
	if n > maxTimerSeconds/unit {
		return 0
	}
	return n * unit
}

func (Timer) Match(in domain.Input) Match {
	t := strings.ToLower(strings.TrimSpace(in.Text))
	switch {
	case strings.HasPrefix(t, "timer"), strings.HasPrefix(t, "minuteur"):
		return Match{Score: 0.8, Intent: "timer.set"}
	case strings.Contains(t, "set a timer"), strings.Contains(t, "set timer"):
		return Match{Score: 0.7, Intent: "timer.set"}
	}
	return NoMatch
}

func (Timer) Run(_ context.Context, in domain.Input, rc *RunContext) (*Outcome, error) {
	seconds := parseDurationSeconds(in.Text)

	var requested any
	actions := domain.Actions{}
	if seconds > 0 {
		requested = seconds
		actions = append(actions, domain.TimerRequest{
			Seconds:     seconds,
			RequestedAt: rc.Now.UTC().Format(time.RFC3339Nano),
		})
	}

	return &Outcome{
		Intent: "timer.set",
		Result: map[string]any{
			"message":          "Timer requested; scheduling happens downstream.",
			"requestedSeconds": requested,
			"requestId":        rc.RequestID,
		},
		Actions: actions,
	}, nil
}
