package skills

import (
	"context"
	"math"
	"testing"

	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// fixedSkill scores every utterance the same.
type fixedSkill struct {
	name  string
	score float64
}

func (f fixedSkill) Name() string { return f.name }

func (f fixedSkill) Match(domain.Input) Match { return Match{Score: f.score} }

func (f fixedSkill) Run(context.Context, domain.Input, *RunContext) (*Outcome, error) {
	return &Outcome{Intent: f.name}, nil
}

func TestRegistry_Best(t *testing.T) {
	tests := []struct {
		name     string
		skills   []Skill
		wantName string
	}{
		{"highest wins", []Skill{fixedSkill{"a", 0.2}, fixedSkill{"b", 0.9}, fixedSkill{"c", 0.5}}, "b"},
		{"first wins tie", []Skill{fixedSkill{"a", 0.5}, fixedSkill{"b", 0.5}}, "a"},
		{"nan ignored", []Skill{fixedSkill{"a", math.NaN()}, fixedSkill{"b", 0.1}}, "b"},
		{"inf ignored", []Skill{fixedSkill{"a", math.Inf(1)}, fixedSkill{"b", 0.1}}, "b"},
		{"negative ignored", []Skill{fixedSkill{"a", -1}, fixedSkill{"b", 0.1}}, "b"},
		{"nothing positive", []Skill{fixedSkill{"a", 0}, fixedSkill{"b", -2}}, ""},
		{"empty registry", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(tt.skills...)
			best, m := r.Best(domain.Input{Text: "anything"})
			if tt.wantName == "" {
				if best != nil {
					t.Fatalf("Best() = %s, want nil", best.Name())
				}
				return
			}
			if best == nil {
				t.Fatalf("Best() = nil, want %s", tt.wantName)
			}
			if best.Name() != tt.wantName {
				t.Errorf("Best() = %s, want %s", best.Name(), tt.wantName)
			}
			if m.Intent != tt.wantName {
				t.Errorf("Intent = %q, want skill name %q", m.Intent, tt.wantName)
			}
		})
	}
}

func TestDefaultRegistry_Routing(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		text       string
		wantSkill  string
		wantIntent string
	}{
		{"ping", "ping", "ping"},
		{"quelle heure est-il ?", "time", "time.now"},
		{"météo demain", "weather", "weather.tomorrow"},
		{"todo: acheter du lait", "todo", "todo.add_task"},
		{"montre mes tâches", "todo", "todo.list"},
		{"timer 5 minutes", "timer", "timer.set"},
		{"turn on kitchen light 40%", "lights", "lights.on"},
		{"ha: light.turn_on entity_id=light.kitchen brightness_pct=40", "home_assistant", "ha.light.turn_on"},
		{"résume mes emails", "inbox", "email.summarize"},
		{"lis mes sms", "inbox", "sms.read_latest"},
		{"play daft punk", "music", "music.play"},
		{"lance alien sur plex", "plex", "plex.play_request"},
		{"start the vacuum", "robot", "robot.confirm"},
		{"robot: start vacuum", "robot", "robot.start"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			best, m := r.Best(domain.Input{Text: tt.text})
			if best == nil {
				t.Fatalf("no skill matched %q", tt.text)
			}
			if best.Name() != tt.wantSkill {
				t.Errorf("skill = %s, want %s", best.Name(), tt.wantSkill)
			}
			if m.Intent != tt.wantIntent {
				t.Errorf("intent = %s, want %s", m.Intent, tt.wantIntent)
			}
		})
	}

	if best, _ := r.Best(domain.Input{Text: "raconte moi une blague"}); best != nil {
		t.Errorf("unexpected match %s", best.Name())
	}
}
