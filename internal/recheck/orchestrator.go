// Package recheck keeps the daemon's verdict fresh over time: a cron-driven
// orchestrator re-runs the decision pipeline at configured wall-clock times,
// and a recovery routine re-arms persisted wake-ups after a restart or a
// host time change.
package recheck

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"umbrella/internal/types"
)

// Runner executes decision passes and maintains the pre-check chain.
type Runner interface {
	Run(ctx context.Context, forceRefresh bool) (types.WeatherDecision, error)
	EnsurePreCheck(ctx context.Context) error
}

// Orchestrator fires a forced-refresh decision pass at each configured
// wall-clock time. A pass that ends in a DecisionError is retried up to the
// configured attempt count; whatever the outcome, the pre-check chain is
// re-armed before the pass ends.
type Orchestrator struct {
	runner      Runner
	times       []types.TimeOfDay
	maxAttempts int
	retryDelay  time.Duration
	tz          *time.Location
	cron        *cron.Cron
	logger      *slog.Logger
	sleepFn     func(time.Duration)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRetryDelay overrides the wait between attempts of one pass.
func WithRetryDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retryDelay = d
	}
}

// WithSleepFunc overrides the sleep used between attempts, for tests.
func WithSleepFunc(fn func(time.Duration)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.sleepFn = fn
	}
}

// NewOrchestrator creates an Orchestrator firing at the given wall-clock
// times in tz. A nil logger defaults to slog.Default().
func NewOrchestrator(runner Runner, times []types.TimeOfDay, maxAttempts int, tz *time.Location, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		runner:      runner,
		times:       times,
		maxAttempts: maxAttempts,
		retryDelay:  time.Minute,
		tz:          tz,
		cron:        cron.New(cron.WithLocation(tz)),
		logger:      logger,
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start registers the cron entries and begins firing. The context bounds
// each triggered pass, not the cron loop itself; call Stop to end firing.
func (o *Orchestrator) Start(ctx context.Context) error {
	for _, t := range o.times {
		spec := fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
		if _, err := o.cron.AddFunc(spec, func() {
			o.RunPass(ctx)
		}); err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected,
				fmt.Sprintf("invalid re-check time %s", t), err)
		}
	}
	o.cron.Start()
	o.logger.InfoContext(ctx, "re-check orchestrator started", "times", fmt.Sprint(o.times))
	return nil
}

// Stop ends cron firing and waits for a running pass to finish.
func (o *Orchestrator) Stop() {
	<-o.cron.Stop().Done()
}

// RunPass executes one re-check: a forced-refresh decision pass, retried on
// DecisionError up to the attempt limit. The pre-check chain is re-armed
// before returning regardless of the outcome.
func (o *Orchestrator) RunPass(ctx context.Context) {
	defer func() {
		if err := o.runner.EnsurePreCheck(ctx); err != nil {
			o.logger.WarnContext(ctx, "failed to re-arm pre-check after re-check pass", "error", err)
		}
	}()

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		decision, err := o.runner.Run(ctx, true)
		if err == nil {
			if _, failed := decision.(types.DecisionError); !failed {
				return
			}
		} else {
			o.logger.WarnContext(ctx, "re-check pass errored", "attempt", attempt, "error", err)
		}

		if attempt < o.maxAttempts {
			o.sleepFn(o.retryDelay)
		}
	}
	o.logger.WarnContext(ctx, "re-check pass exhausted attempts", "attempts", o.maxAttempts)
}
