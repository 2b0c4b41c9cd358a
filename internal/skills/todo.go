package skills

import (
	"context"
	"regexp"
	"strings"

	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// Todo plans todo.add_task actions and todo list reads.
type Todo struct{}

func (Todo) Name() string { return "todo" }

var (
	todoAddPattern = regexp.MustCompile(`^(add|ajoute|ajouter)\s+(a\s+|une\s+)?(todo|to-do|tâche|tache)\s+(.+)$`)
	todoDuePattern = regexp.MustCompile(`(?i)\bdue=(\S+)`)
	todoRemindPat  = regexp.MustCompile(`(?i)\bremind=(\S+)`)
)

func todoTitle(text string) string {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)

	for _, prefix := range []string{"todo:", "to-do:"} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(t[len(prefix):])
		}
	}
	if m := todoAddPattern.FindStringSubmatch(lower); m != nil {
		return strings.TrimSpace(t[len(t)-len(m[4]):])
	}
	return ""
}

func todoWantsList(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "todo list" || strings.HasPrefix(t, "todo list ") || strings.HasPrefix(t, "list todo") {
		return true
	}
	mentionsTasks := strings.Contains(t, "tâche") || strings.Contains(t, "tache") || strings.Contains(t, "todo")
	return (strings.Contains(t, "liste") && mentionsTasks) ||
		(strings.Contains(t, "montre") && mentionsTasks) ||
		strings.Contains(t, "mes tâches") || strings.Contains(t, "mes taches")
}

// splitTodoParams pulls due= and remind= suffixes out of a raw title.
func splitTodoParams(raw string) (title, dueAt, remindAt string) {
	if m := todoDuePattern.FindStringSubmatch(raw); m != nil {
		dueAt = m[1]
	}
	if m := todoRemindPat.FindStringSubmatch(raw); m != nil {
		remindAt = m[1]
	}
	title = todoDuePattern.ReplaceAllString(raw, "")
	title = todoRemindPat.ReplaceAllString(title, "")
	return strings.Join(strings.Fields(title), " "), dueAt, remindAt
}

func (Todo) Match(in domain.Input) Match {
	switch {
	case todoWantsList(in.Text):
		return Match{Score: 0.75, Intent: "todo.list"}
	case todoTitle(in.Text) != "":
		return Match{Score: 0.85, Intent: "todo.add_task"}
	case strings.Contains(strings.ToLower(in.Text), "todo"):
		return Match{Score: 0.2, Intent: "todo.unknown"}
	}
	return NoMatch
}

func (Todo) Run(_ context.Context, in domain.Input, rc *RunContext) (*Outcome, error) {
	if todoWantsList(in.Text) {
		return &Outcome{
			Intent: "todo.list",
			Result: map[string]any{
				"message":   "Planned todo list (execution happens on the connector).",
				"requestId": rc.RequestID,
			},
			Actions: domain.Actions{domain.ConnectorRequest{
				Connector: domain.ConnectorTodo,
				Operation: domain.OperationList,
				Params:    map[string]any{"limit": 10},
			}},
		}, nil
	}

	raw := todoTitle(in.Text)
	if raw == "" {
		return &Outcome{
			Intent: "todo.unknown",
			Result: map[string]any{
				"message":  "Todo skill needs an explicit title.",
				"examples": []string{"todo: buy milk", "ajoute une tâche appeler le dentiste"},
			},
			Actions: domain.Actions{},
		}, nil
	}

	title, dueAt, remindAt := splitTodoParams(raw)
	if title == "" {
		return &Outcome{
			Intent: "todo.unknown",
			Result: map[string]any{
				"message":  "Todo title is empty after parsing parameters.",
				"examples": []string{"todo: buy milk", "todo: call dentist due=2026-02-23T09:00 remind=2026-02-23T08:50"},
			},
			Actions: domain.Actions{},
		}, nil
	}

	return &Outcome{
		Intent: "todo.add_task",
		Result: map[string]any{
			"message":   "Planned todo task (execution happens on the connector).",
			"title":     title,
			"dueAt":     dueAt,
			"remindAt":  remindAt,
			"requestId": rc.RequestID,
		},
		Actions: domain.Actions{domain.AddTask{Title: title, DueAt: dueAt, RemindAt: remindAt}},
	}, nil
}
