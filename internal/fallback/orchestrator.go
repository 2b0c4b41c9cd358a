// Package fallback asks a language model what to do with utterances the
// deterministic router could not match. The model answers with a
// schema-validated directive: a chat reply, a rewritten command, a list of
// actions, or a request for one service's field schema.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/router"
	"github.com/tjfontaine/jarvis/internal/skills"
	"github.com/tjfontaine/jarvis/internal/tokens"
)

// Mode selects when the orchestrator is consulted.
type Mode string

const (
	// ModeFallback consults the model only for unmatched utterances.
	ModeFallback Mode = "fallback"

	// ModeAlwaysActions consults the model first and keeps its answer only
	// when it is a non-empty actions directive.
	ModeAlwaysActions Mode = "always_actions"
)

// SkillLLM is reported for results produced by the model.
const SkillLLM = "llm"

// maxRoundTrips bounds model calls per utterance: the first answer plus one
// follow-up after select_service.
const maxRoundTrips = 2

const (
	msgRewriteFailed = "I could not turn that into a command I can run. Try rephrasing, e.g. 'turn on kitchen light 40%'."
	msgClarify       = "I need more details to do that. Which device or service do you mean?"
)

// Orchestrator runs the model round-trips for one utterance.
type Orchestrator struct {
	model   ports.ChatModel
	memory  ports.MemoryStore
	router  *router.Router
	catalog *Catalog
	counter *tokens.Counter
	budget  int
	mode    Mode
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCatalog appends the service index to every prompt and enables
// select_service.
func WithCatalog(c *Catalog) Option {
	return func(o *Orchestrator) {
		o.catalog = c
	}
}

// WithHistoryBudget caps the history sent to the model at maxTokens as
// counted by counter. The oldest turns are dropped first.
func WithHistoryBudget(counter *tokens.Counter, maxTokens int) Option {
	return func(o *Orchestrator) {
		o.counter = counter
		o.budget = maxTokens
	}
}

// WithMode sets the operating mode. Unknown modes keep ModeFallback.
func WithMode(m Mode) Option {
	return func(o *Orchestrator) {
		if m == ModeAlwaysActions {
			o.mode = m
		}
	}
}

// New creates an orchestrator. Rewritten commands are re-routed through rt.
func New(model ports.ChatModel, memory ports.MemoryStore, rt *router.Router, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		model:  model,
		memory: memory,
		router: rt,
		mode:   ModeFallback,
		logger: logger,
		tracer: otel.Tracer("jarvis/fallback"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Mode reports the operating mode.
func (o *Orchestrator) Mode() Mode {
	return o.mode
}

// Handle asks the model about in and records the exchange in conversation
// memory. Model and store failures are returned; malformed model output is
// not an error.
func (o *Orchestrator) Handle(ctx context.Context, in domain.Input, now time.Time) (*Directive, error) {
	conversationID := domain.ConversationID(in.Context)

	ctx, span := o.tracer.Start(ctx, "fallback.Handle",
		trace.WithAttributes(attribute.String("jarvis.conversation_id", conversationID)))
	defer span.End()

	d, err := o.handle(ctx, in, conversationID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("jarvis.directive", string(d.Type)))
	return d, nil
}

func (o *Orchestrator) handle(ctx context.Context, in domain.Input, conversationID string, now time.Time) (*Directive, error) {
	history, err := o.memory.LoadRecent(ctx, conversationID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation memory: %w", err)
	}

	messages := []ports.ChatMessage{{Role: ports.ChatRoleSystem, Content: systemPrompt()}}
	if o.catalog != nil {
		services, err := o.catalog.Services(ctx)
		if err != nil {
			o.logger.WarnContext(ctx, "service catalog unavailable", slog.String("error", err.Error()))
		} else if index := compactIndex(services); index != "" {
			messages = append(messages, ports.ChatMessage{Role: ports.ChatRoleSystem, Content: index})
		}
	}
	messages = append(messages, o.historyMessages(history)...)
	messages = append(messages, ports.ChatMessage{Role: ports.ChatRoleUser, Content: in.Text})

	raw, err := o.model.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	d := ParseDirective(raw)

	roundTrips := 1
	for d.Type == DirectiveSelectService {
		if roundTrips >= maxRoundTrips {
			d = Chat(msgClarify)
			break
		}
		info, found := o.lookupService(ctx, d.Domain, d.Service)
		if !found {
			d = Chat(fmt.Sprintf("Service %s.%s not found in Home Assistant.", d.Domain, d.Service))
			break
		}

		messages = append(messages,
			ports.ChatMessage{Role: ports.ChatRoleAssistant, Content: raw},
			ports.ChatMessage{Role: ports.ChatRoleSystem, Content: serviceDetail(d.Domain, d.Service, info)},
		)
		raw, err = o.model.Complete(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("model follow-up call failed: %w", err)
		}
		roundTrips++
		d = ParseDirective(raw)
	}

	o.logger.DebugContext(ctx, "model directive",
		slog.String("conversation_id", conversationID),
		slog.String("directive", string(d.Type)),
		slog.Int("round_trips", roundTrips))

	if err := o.remember(ctx, conversationID, in.Text, d, now); err != nil {
		return nil, err
	}
	return &d, nil
}

func (o *Orchestrator) lookupService(ctx context.Context, domainName, serviceName string) (ports.ServiceInfo, bool) {
	if o.catalog == nil {
		return ports.ServiceInfo{}, false
	}
	info, ok, err := o.catalog.Lookup(ctx, domainName, serviceName)
	if err != nil {
		o.logger.WarnContext(ctx, "service lookup failed",
			slog.String("service", domainName+"."+serviceName),
			slog.String("error", err.Error()))
		return ports.ServiceInfo{}, false
	}
	return info, ok
}

func (o *Orchestrator) historyMessages(history []domain.MemoryMessage) []ports.ChatMessage {
	msgs := make([]ports.ChatMessage, 0, len(history))
	for _, m := range history {
		role := ports.ChatRoleUser
		if m.Role == domain.RoleAssistant {
			role = ports.ChatRoleAssistant
		}
		msgs = append(msgs, ports.ChatMessage{Role: role, Content: m.Content})
	}
	if o.counter != nil {
		msgs = o.counter.Trim(msgs, o.budget)
	}
	return msgs
}

func (o *Orchestrator) remember(ctx context.Context, conversationID, text string, d Directive, now time.Time) error {
	turns := []domain.MemoryMessage{
		{Timestamp: now, Role: domain.RoleUser, Content: text},
		{Timestamp: now, Role: domain.RoleAssistant, Content: d.memoryContent()},
	}
	for _, m := range turns {
		if err := o.memory.Append(ctx, conversationID, m, now); err != nil {
			return fmt.Errorf("failed to record conversation memory: %w", err)
		}
	}
	return nil
}

// ToRouted turns a directive into a routed result. Commands are re-run
// through the router with the original context.
func (o *Orchestrator) ToRouted(ctx context.Context, d *Directive, in domain.Input, rc *skills.RunContext) (*domain.RoutedResult, error) {
	switch d.Type {
	case DirectiveActions:
		return &domain.RoutedResult{
			Skill:   SkillLLM,
			Intent:  "llm.actions." + d.Intent,
			Result:  map[string]any{"message": d.Message},
			Actions: stampActions(d.Actions, rc.Now),
		}, nil

	case DirectiveCommand:
		rewritten := domain.Input{Text: d.Text, Context: in.Context}
		routed, err := o.router.Route(ctx, rewritten, rc)
		if err != nil {
			return nil, fmt.Errorf("failed to route rewritten command: %w", err)
		}
		if router.IsFallback(routed) {
			return &domain.RoutedResult{
				Skill:   SkillLLM,
				Intent:  "chat",
				Result:  map[string]any{"message": msgRewriteFailed, "llmCommand": d.Text},
				Actions: domain.Actions{},
			}, nil
		}

		result := make(map[string]any, len(routed.Result)+1)
		maps.Copy(result, routed.Result)
		result["llmCommand"] = d.Text
		return &domain.RoutedResult{
			Skill:   routed.Skill,
			Intent:  "llm.rewrite." + routed.Intent,
			Result:  result,
			Actions: routed.Actions,
		}, nil

	case DirectiveSelectService:
		return chatResult(msgClarify), nil
	}
	return chatResult(d.Text), nil
}

func chatResult(text string) *domain.RoutedResult {
	return &domain.RoutedResult{
		Skill:   SkillLLM,
		Intent:  "chat",
		Result:  map[string]any{"message": text},
		Actions: domain.Actions{},
	}
}

// stampActions fills the request time of timers the model left unset.
func stampActions(actions domain.Actions, now time.Time) domain.Actions {
	out := make(domain.Actions, 0, len(actions))
	for _, a := range actions {
		if t, ok := a.(domain.TimerRequest); ok && t.RequestedAt == "" {
			t.RequestedAt = now.UTC().Format(time.RFC3339Nano)
			a = t
		}
		out = append(out, a)
	}
	return out
}
