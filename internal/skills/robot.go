package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// Robot starts the cleaning robot. Without the explicit "robot:" prefix the
// start action is parked as a pending confirmation and only emitted once the
// user answers yes.
type Robot struct{}

func (Robot) Name() string { return "robot" }

const robotCommandPrefix = "robot:"

func (Robot) Match(in domain.Input) Match {
	t := strings.ToLower(strings.TrimSpace(in.Text))
	switch {
	case strings.HasPrefix(t, robotCommandPrefix):
		return Match{Score: 0.8, Intent: "robot.start"}
	case strings.Contains(t, "robot"), strings.Contains(t, "aspirateur"), strings.Contains(t, "vacuum"):
		return Match{Score: 0.4, Intent: "robot.confirm"}
	}
	return NoMatch
}

func robotAction(text string) domain.StartRobot {
	t := strings.ToLower(text)
	name := "robot"
	if strings.Contains(t, "vacuum") || strings.Contains(t, "aspirateur") {
		name = "vacuum"
	}
	mode := "auto"
	for _, m := range []string{"spot", "edge", "quiet", "turbo"} {
		if strings.Contains(t, m) {
			mode = m
			break
		}
	}
	return domain.StartRobot{Robot: name, Mode: mode}
}

func (Robot) Run(ctx context.Context, in domain.Input, rc *RunContext) (*Outcome, error) {
	action := robotAction(in.Text)

	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(in.Text)), robotCommandPrefix) {
		return &Outcome{
			Intent: "robot.start",
			Result: map[string]any{
				"message":   fmt.Sprintf("Starting %s (%s).", action.Robot, action.Mode),
				"requestId": rc.RequestID,
			},
			Actions: domain.Actions{action},
		}, nil
	}

	if rc.Pending == nil {
		return &Outcome{
			Intent: "robot.confirm",
			Result: map[string]any{
				"message": fmt.Sprintf("Confirmation is unavailable; use \"robot: start %s\" to start it directly.", action.Robot),
			},
			Actions: domain.Actions{},
		}, nil
	}

	if err := rc.Pending.Set(ctx, rc.ConversationID, action, rc.Now); err != nil {
		return nil, fmt.Errorf("failed to store pending robot start: %w", err)
	}

	return &Outcome{
		Intent: "robot.confirm",
		Result: map[string]any{
			"message":              fmt.Sprintf("Start the %s (%s)? Answer yes or no.", action.Robot, action.Mode),
			"awaitingConfirmation": true,
			"requestId":            rc.RequestID,
		},
		Actions: domain.Actions{},
	}, nil
}
