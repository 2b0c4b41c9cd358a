// Package janitor periodically removes expired pending confirmations.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tjfontaine/jarvis/internal/core/ports"
)

// DefaultSchedule sweeps once a minute.
const DefaultSchedule = "@every 1m"

// Janitor runs PendingStore.Sweep on a cron schedule.
type Janitor struct {
	store  ports.PendingStore
	cron   *cron.Cron
	now    func() time.Time
	logger *slog.Logger
}

// New schedules sweeps of store. An empty schedule uses DefaultSchedule.
func New(store ports.PendingStore, schedule string, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	j := &Janitor{
		store:  store,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:    time.Now,
		logger: logger,
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Sweep removes expired items once and reports how many were removed.
func (j *Janitor) Sweep(ctx context.Context) int {
	n, err := j.store.Sweep(ctx, j.now())
	if err != nil {
		j.logger.WarnContext(ctx, "pending sweep failed", slog.String("error", err.Error()))
		return 0
	}
	if n > 0 {
		j.logger.DebugContext(ctx, "expired pending actions removed", slog.Int("count", n))
	}
	return n
}

// Start runs the schedule in the background.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
