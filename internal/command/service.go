// Package command turns one utterance into a routed, optionally executed,
// result envelope.
package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/executor"
	"github.com/tjfontaine/jarvis/internal/fallback"
	"github.com/tjfontaine/jarvis/internal/router"
	"github.com/tjfontaine/jarvis/internal/skills"
	"github.com/tjfontaine/jarvis/internal/storage"
)

// Mode reports whether planned actions were executed.
type Mode string

const (
	ModePlan    Mode = "plan"
	ModeExecute Mode = "execute"
)

// Request is one command as received by a transport.
type Request struct {
	Text    string         `json:"text"`
	Context map[string]any `json:"context,omitempty"`
	Options Options        `json:"options,omitempty"`
}

// Options are per-request switches. A nil Execute uses the service default.
type Options struct {
	Execute *bool `json:"execute,omitempty"`
}

// Envelope is the response to a command.
type Envelope struct {
	RequestID       string                  `json:"requestId"`
	Intent          string                  `json:"intent"`
	Skill           string                  `json:"skill"`
	Result          map[string]any          `json:"result"`
	Actions         domain.Actions          `json:"actions"`
	ExecutedActions []domain.ExecutedAction `json:"executedActions,omitempty"`
	Mode            Mode                    `json:"mode"`
}

// AliasSource returns the current entity alias map. Implementations may swap
// the map at any time; callers must not mutate it.
type AliasSource func() map[string]string

// Service routes commands, consults the model when routing fails and executes
// the planned actions on request.
type Service struct {
	router         *router.Router
	fallback       *fallback.Orchestrator
	executor       *executor.Executor
	ha             ports.HomeAssistant
	aliases        AliasSource
	locker         *storage.Locker
	executeDefault bool
	now            func() time.Time
	logger         *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFallback enables the language model for unmatched utterances.
func WithFallback(o *fallback.Orchestrator) Option {
	return func(s *Service) {
		s.fallback = o
	}
}

// WithHomeAssistant sets the controller used by skills and the executor.
func WithHomeAssistant(ha ports.HomeAssistant) Option {
	return func(s *Service) {
		s.ha = ha
	}
}

func WithAliases(src AliasSource) Option {
	return func(s *Service) {
		s.aliases = src
	}
}

// WithLocker serializes requests of the same conversation.
func WithLocker(l *storage.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

// WithExecuteDefault sets whether actions run when the request does not say.
func WithExecuteDefault(execute bool) Option {
	return func(s *Service) {
		s.executeDefault = execute
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a command service around rt.
func NewService(rt *router.Router, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		router:  rt,
		aliases: func() map[string]string { return nil },
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.executor == nil {
		s.executor = executor.New(s.ha, logger)
	}
	return s
}

// Handle routes req. An empty requestID is replaced with a fresh one.
func (s *Service) Handle(ctx context.Context, requestID string, req Request) (*Envelope, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, domain.ErrInvalidRequest("text is required").WithParam("text")
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	conversationID := domain.ConversationID(req.Context)
	if s.locker != nil {
		unlock := s.locker.Lock(conversationID)
		defer unlock()
	}

	execute := s.executeDefault
	if req.Options.Execute != nil {
		execute = *req.Options.Execute
	}

	in := domain.Input{Text: text, Context: req.Context}
	rc := &skills.RunContext{
		RequestID:      requestID,
		ConversationID: conversationID,
		Now:            s.now(),
		Execute:        execute,
		Aliases:        s.aliases(),
		HA:             s.ha,
	}

	routed, err := s.route(ctx, in, rc)
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		RequestID: requestID,
		Intent:    routed.Intent,
		Skill:     routed.Skill,
		Result:    routed.Result,
		Actions:   routed.Actions,
		Mode:      ModePlan,
	}
	if env.Actions == nil {
		env.Actions = domain.Actions{}
	}
	if execute {
		env.Mode = ModeExecute
		env.ExecutedActions = s.executor.Execute(ctx, env.Actions)
	}

	s.logger.InfoContext(ctx, "command routed",
		slog.String("request_id", requestID),
		slog.String("conversation_id", conversationID),
		slog.String("skill", env.Skill),
		slog.String("intent", env.Intent),
		slog.Int("actions", len(env.Actions)),
		slog.String("mode", string(env.Mode)))

	return env, nil
}

func (s *Service) route(ctx context.Context, in domain.Input, rc *skills.RunContext) (*domain.RoutedResult, error) {
	// In always_actions mode the model is asked first and its answer kept
	// only when it plans something.
	var (
		early  *fallback.Directive
		failed bool
	)
	if s.fallback != nil && s.fallback.Mode() == fallback.ModeAlwaysActions {
		d, err := s.fallback.Handle(ctx, in, rc.Now)
		switch {
		case err != nil:
			failed = true
			s.logger.WarnContext(ctx, "model call failed", slog.String("error", err.Error()))
		case d.Type == fallback.DirectiveActions && len(d.Actions) > 0:
			return s.fallback.ToRouted(ctx, d, in, rc)
		default:
			early = d
		}
	}

	routed, err := s.router.Route(ctx, in, rc)
	if err != nil {
		return nil, err
	}
	if !router.IsFallback(routed) || s.fallback == nil || failed {
		return routed, nil
	}

	d := early
	if d == nil {
		d, err = s.fallback.Handle(ctx, in, rc.Now)
		if err != nil {
			s.logger.WarnContext(ctx, "model fallback failed", slog.String("error", err.Error()))
			return routed, nil
		}
	}
	res, err := s.fallback.ToRouted(ctx, d, in, rc)
	if err != nil {
		s.logger.WarnContext(ctx, "model directive could not be routed", slog.String("error", err.Error()))
		return routed, nil
	}
	return res, nil
}
