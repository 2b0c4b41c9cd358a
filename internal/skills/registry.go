package skills

import (
	"github.com/tjfontaine/jarvis/internal/core/domain"
)

// Registry is the ordered dispatch table of skills.
type Registry struct {
	skills []Skill
}

// NewRegistry returns a registry holding skills in the given order.
func NewRegistry(skills ...Skill) *Registry {
	r := &Registry{}
	for _, s := range skills {
		r.Register(s)
	}
	return r
}

// Register appends a skill. Earlier skills win ties.
func (r *Registry) Register(s Skill) {
	if s == nil {
		return
	}
	r.skills = append(r.skills, s)
}

// Skills returns the registered skills in registry order.
func (r *Registry) Skills() []Skill {
	out := make([]Skill, len(r.skills))
	copy(out, r.skills)
	return out
}

// Best returns the highest scoring skill and its match. A strictly greater
// score replaces the current best, so the first registered skill wins a tie.
// The returned skill is nil when nothing scored above 0.
func (r *Registry) Best(in domain.Input) (Skill, Match) {
	var (
		best      Skill
		bestMatch Match
	)
	for _, s := range r.skills {
		m := s.Match(in)
		m.Score = sanitizeScore(m.Score)
		if m.Intent == "" {
			m.Intent = s.Name()
		}
		if best == nil || m.Score > bestMatch.Score {
			best, bestMatch = s, m
		}
	}
	if best == nil || bestMatch.Score <= 0 {
		return nil, NoMatch
	}
	return best, bestMatch
}

// DefaultRegistry wires the built-in skills in their matching order.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Ping{},
		Time{},
		Weather{},
		Todo{},
		Timer{},
		Lights{},
		HomeAssistant{},
		Inbox{},
		Music{},
		Plex{},
		Robot{},
	)
}
