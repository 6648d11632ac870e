package recheck

import (
	"context"
	"log/slog"

	"umbrella/internal/types"
)

// Restorer re-arms persisted wake-ups.
type Restorer interface {
	RestoreIfNeeded(ctx context.Context, enabled bool) (bool, error)
	RestorePreCheckIfNeeded(ctx context.Context, enabled bool) (bool, error)
}

// RecoverySettings reads the current user settings.
type RecoverySettings interface {
	Get(ctx context.Context) (types.UserSettings, error)
}

// Recovery re-establishes scheduling state at daemon startup and after a
// host time change, when armed timers may have been lost or invalidated.
type Recovery struct {
	restorer Restorer
	settings RecoverySettings
	runner   Runner
	logger   *slog.Logger
}

// NewRecovery creates a Recovery. A nil logger defaults to slog.Default().
func NewRecovery(restorer Restorer, settings RecoverySettings, runner Runner, logger *slog.Logger) *Recovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recovery{
		restorer: restorer,
		settings: settings,
		runner:   runner,
		logger:   logger,
	}
}

// Recover restores the notification alarm and pre-check from their
// persisted records. When the alarm record is missing or already past, a
// full decision pass re-derives the schedule from current settings; when
// only the pre-check is missing, it is re-armed directly.
func (r *Recovery) Recover(ctx context.Context) error {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return err
	}

	restored, err := r.restorer.RestoreIfNeeded(ctx, settings.Enabled)
	if err != nil {
		return err
	}

	if !settings.Enabled {
		r.logger.InfoContext(ctx, "recovery skipped, notifications disabled")
		return nil
	}

	if !restored {
		r.logger.InfoContext(ctx, "no alarm to restore, running fresh decision pass")
		if _, err := r.runner.Run(ctx, false); err != nil {
			return err
		}
		// Run arms the pre-check itself on success; the restore below
		// only fills in when the pass left no chain behind.
	}

	preRestored, err := r.restorer.RestorePreCheckIfNeeded(ctx, settings.Enabled)
	if err != nil {
		return err
	}
	if !preRestored {
		if err := r.runner.EnsurePreCheck(ctx); err != nil {
			return err
		}
	}

	r.logger.InfoContext(ctx, "recovery complete", "alarm_restored", restored, "precheck_restored", preRestored)
	return nil
}
