// Package router turns an utterance into a routed result: it resolves yes/no
// replies to pending confirmations and otherwise dispatches to the best
// scoring skill.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/skills"
	"github.com/tjfontaine/jarvis/internal/textnorm"
)

const (
	// SkillFallback and IntentUnknown mark a result no skill wanted.
	SkillFallback = "fallback"
	IntentUnknown = "unknown"

	// SkillConfirm is reported for replies that resolved a pending item.
	SkillConfirm = "confirm"
)

var (
	affirmativeTokens = map[string]bool{"yes": true, "y": true, "oui": true, "ok": true, "confirm": true, "go": true}
	negativeTokens    = map[string]bool{"no": true, "n": true, "non": true, "cancel": true, "annule": true, "stop": true}
)

// DefaultGatedTypes are the action types that require an explicit yes.
var DefaultGatedTypes = []domain.ActionType{domain.ActionStartRobot}

// Router is the deterministic half of command handling.
type Router struct {
	registry *skills.Registry
	pending  ports.PendingStore
	gated    map[domain.ActionType]bool
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Router.
type Option func(*Router)

// WithGatedTypes replaces the set of action types resolved by yes/no replies.
func WithGatedTypes(types ...domain.ActionType) Option {
	return func(r *Router) {
		r.gated = make(map[domain.ActionType]bool, len(types))
		for _, t := range types {
			r.gated[t] = true
		}
	}
}

// WithTracer overrides the tracer used for routing spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) {
		r.tracer = t
	}
}

// New creates a router over registry. pending may be nil, in which case
// confirmation replies are routed like any other utterance.
func New(registry *skills.Registry, pending ports.PendingStore, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		registry: registry,
		pending:  pending,
		logger:   logger,
		tracer:   otel.Tracer("jarvis/router"),
	}
	WithGatedTypes(DefaultGatedTypes...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route resolves in. The conversation id is taken from rc, or derived from
// the input context when rc leaves it empty.
func (r *Router) Route(ctx context.Context, in domain.Input, rc *skills.RunContext) (*domain.RoutedResult, error) {
	if rc == nil {
		rc = &skills.RunContext{}
	}
	if rc.ConversationID == "" {
		rc.ConversationID = domain.ConversationID(in.Context)
	}
	if rc.Pending == nil && r.pending != nil {
		rc.Pending = r.pending
	}

	ctx, span := r.tracer.Start(ctx, "router.Route",
		trace.WithAttributes(attribute.String("jarvis.conversation_id", rc.ConversationID)))
	defer span.End()

	res, err := r.route(ctx, in, rc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("jarvis.skill", res.Skill),
		attribute.String("jarvis.intent", res.Intent),
		attribute.Int("jarvis.actions", len(res.Actions)),
	)
	return res, nil
}

func (r *Router) route(ctx context.Context, in domain.Input, rc *skills.RunContext) (*domain.RoutedResult, error) {
	res, handled, err := r.checkConfirmation(ctx, in, rc)
	if err != nil {
		return nil, err
	}
	if handled {
		return res, nil
	}
	return r.Dispatch(ctx, in, rc)
}

// checkConfirmation handles a bare yes/no reply against the conversation's
// pending item. handled is false when normal dispatch should proceed.
func (r *Router) checkConfirmation(ctx context.Context, in domain.Input, rc *skills.RunContext) (*domain.RoutedResult, bool, error) {
	if r.pending == nil {
		return nil, false, nil
	}

	token := textnorm.Normalize(in.Text)
	affirmative, negative := affirmativeTokens[token], negativeTokens[token]
	if !affirmative && !negative {
		return nil, false, nil
	}

	item, err := r.pending.Get(ctx, rc.ConversationID, rc.Now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read pending confirmation: %w", err)
	}
	if item == nil {
		return nil, false, nil
	}

	if !r.gated[item.Action.Type()] {
		if negative {
			if err := r.pending.Clear(ctx, rc.ConversationID); err != nil {
				return nil, false, fmt.Errorf("failed to clear pending confirmation: %w", err)
			}
		}
		return nil, false, nil
	}

	actionType := string(item.Action.Type())
	if negative {
		if err := r.pending.Clear(ctx, rc.ConversationID); err != nil {
			return nil, false, fmt.Errorf("failed to clear pending confirmation: %w", err)
		}
		r.logger.DebugContext(ctx, "pending action cancelled",
			slog.String("conversation_id", rc.ConversationID),
			slog.String("action", actionType))
		return &domain.RoutedResult{
			Skill:  SkillConfirm,
			Intent: actionType + ".cancelled",
			Result: map[string]any{
				"message":   "Cancelled.",
				"requestId": rc.RequestID,
			},
			Actions: domain.Actions{},
		}, true, nil
	}

	consumed, err := r.pending.Consume(ctx, rc.ConversationID, rc.Now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to consume pending confirmation: %w", err)
	}
	if consumed == nil {
		// Another request took the item between Get and Consume.
		return nil, false, nil
	}
	r.logger.DebugContext(ctx, "pending action confirmed",
		slog.String("conversation_id", rc.ConversationID),
		slog.String("action", actionType))
	return &domain.RoutedResult{
		Skill:  SkillConfirm,
		Intent: actionType + ".confirmed",
		Result: map[string]any{
			"message":   "Confirmed.",
			"requestId": rc.RequestID,
		},
		Actions: domain.Actions{consumed.Action},
	}, true, nil
}

// Dispatch runs the best matching skill, or returns the fallback result when
// no skill scored above zero. It never consults pending confirmations.
func (r *Router) Dispatch(ctx context.Context, in domain.Input, rc *skills.RunContext) (*domain.RoutedResult, error) {
	skill, match := r.registry.Best(in)
	if skill == nil {
		return Fallback(rc.RequestID), nil
	}

	out, err := skill.Run(ctx, in, rc)
	if err != nil {
		return nil, fmt.Errorf("skill %s: %w", skill.Name(), err)
	}
	if out == nil {
		return nil, fmt.Errorf("skill %s: returned no outcome", skill.Name())
	}

	intent := out.Intent
	if intent == "" {
		intent = match.Intent
	}
	actions := out.Actions
	if actions == nil {
		actions = domain.Actions{}
	}
	return &domain.RoutedResult{
		Skill:   skill.Name(),
		Intent:  intent,
		Result:  out.Result,
		Actions: actions,
	}, nil
}

// Fallback is the result reported when no skill handles an utterance.
func Fallback(requestID string) *domain.RoutedResult {
	return &domain.RoutedResult{
		Skill:  SkillFallback,
		Intent: IntentUnknown,
		Result: map[string]any{
			"message":   "Sorry, I did not understand that command.",
			"hint":      "Try: ping, time, todo: buy milk, timer 5 minutes, turn on kitchen light, ha: light.turn_on entity_id=light.kitchen",
			"requestId": requestID,
		},
		Actions: domain.Actions{},
	}
}

// IsFallback reports whether res is the no-match result.
func IsFallback(res *domain.RoutedResult) bool {
	return res != nil && res.Skill == SkillFallback && res.Intent == IntentUnknown
}
