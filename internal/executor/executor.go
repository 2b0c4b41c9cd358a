// Package executor performs the Home Assistant service calls a routed
// command planned.
package executor

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/core/ports"
)

// Executor runs actions against Home Assistant. Only service calls are
// executable; every other action is reported as skipped.
type Executor struct {
	ha     ports.HomeAssistant
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates an executor.
func New(ha ports.HomeAssistant, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		ha:     ha,
		logger: logger,
		tracer: otel.Tracer("jarvis/executor"),
	}
}

// Execute attempts each action once, in order. A failed action does not stop
// the batch. The result has one entry per action at the same index.
func (e *Executor) Execute(ctx context.Context, actions domain.Actions) []domain.ExecutedAction {
	out := make([]domain.ExecutedAction, 0, len(actions))
	for _, a := range actions {
		out = append(out, e.execute(ctx, a))
	}
	return out
}

func (e *Executor) execute(ctx context.Context, a domain.Action) domain.ExecutedAction {
	call, ok := a.(domain.ServiceCall)
	if !ok || e.ha == nil {
		return domain.ExecutedAction{Action: a, Status: domain.StatusSkipped}
	}

	ctx, span := e.tracer.Start(ctx, "executor.CallService",
		trace.WithAttributes(attribute.String("jarvis.service", call.Domain+"."+call.Service)))
	defer span.End()

	resp, err := e.ha.CallService(ctx, ports.ServiceCallRequest{
		Domain:      call.Domain,
		Service:     call.Service,
		Target:      call.Target,
		ServiceData: call.ServiceData,
	})
	if err != nil {
		span.RecordError(err)
		e.logger.WarnContext(ctx, "service call failed",
			slog.String("service", call.Domain+"."+call.Service),
			slog.String("error", err.Error()))
		return domain.ExecutedAction{Action: a, Status: domain.StatusFailed, Error: err.Error()}
	}
	return domain.ExecutedAction{Action: a, Status: domain.StatusExecuted, Output: resp}
}
