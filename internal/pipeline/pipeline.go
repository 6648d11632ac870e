// Package pipeline ties the decision engine to its consequences: arming or
// cancelling the notification alarm, maintaining the pre-check chain,
// deriving the persisted status snapshot, tracking the per-day failure
// streak, and delivering notifications when an alarm fires.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"umbrella/internal/alarm"
	"umbrella/internal/notify"
	"umbrella/internal/types"
)

// Engine produces the weather verdict.
type Engine interface {
	Decide(ctx context.Context, forceRefresh bool) (types.WeatherDecision, types.UserSettings)
}

// Scheduler arms and disarms the notification alarm and its pre-check.
type Scheduler interface {
	ScheduleNotification(ctx context.Context, at types.TimeOfDay, tz *time.Location, payload alarm.Payload) (types.ScheduleInfo, error)
	Cancel(ctx context.Context) error
	SchedulePreCheck(ctx context.Context, notificationTarget time.Time) (time.Time, error)
	CancelPreCheck(ctx context.Context) error
}

// StatusStore persists the status snapshot, failure streak, and
// duplicate-suppression marker.
type StatusStore interface {
	SetStatus(ctx context.Context, info types.StatusInfo) error
	IncrementFailure(ctx context.Context, date string, reason string) (int, error)
	ResetFailures(ctx context.Context) error
	LastNotifiedDate(ctx context.Context) (string, error)
	MarkNotified(ctx context.Context, date string) error
}

// SettingsSource reads the current user settings.
type SettingsSource interface {
	Get(ctx context.Context) (types.UserSettings, error)
}

// Pipeline runs decision passes and handles alarm firings.
type Pipeline struct {
	engine   Engine
	sched    Scheduler
	status   StatusStore
	settings SettingsSource
	notifier notify.Notifier
	clock    types.Clock
	tz       *time.Location

	suppressDuplicates bool
	failureThreshold   int
	logger             *slog.Logger
}

// New creates a Pipeline. failureThreshold is the number of consecutive
// same-day failures after which the persistent failure warning is raised.
// A nil logger defaults to slog.Default().
func New(
	engine Engine,
	sched Scheduler,
	status StatusStore,
	settings SettingsSource,
	notifier notify.Notifier,
	clock types.Clock,
	tz *time.Location,
	suppressDuplicates bool,
	failureThreshold int,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		engine:             engine,
		sched:              sched,
		status:             status,
		settings:           settings,
		notifier:           notifier,
		clock:              clock,
		tz:                 tz,
		suppressDuplicates: suppressDuplicates,
		failureThreshold:   failureThreshold,
		logger:             logger,
	}
}

// Run executes a full decision pass and applies its consequences. The
// returned verdict is nil when notifications are disabled, in which case
// both wake-ups are disarmed instead.
func (p *Pipeline) Run(ctx context.Context, forceRefresh bool) (types.WeatherDecision, error) {
	settings, err := p.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	if !settings.Enabled {
		p.logger.InfoContext(ctx, "notifications disabled, disarming wake-ups")
		if err := p.sched.Cancel(ctx); err != nil {
			return nil, err
		}
		if err := p.sched.CancelPreCheck(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := p.status.SetStatus(ctx, types.StatusInfo{
		Status:    types.StatusChecking,
		Threshold: settings.PoPThreshold,
	}); err != nil {
		p.logger.WarnContext(ctx, "failed to record checking status", "error", err)
	}

	decision, settings := p.engine.Decide(ctx, forceRefresh)
	if err := p.Apply(ctx, decision, settings); err != nil {
		return decision, err
	}
	return decision, nil
}

// Apply turns a verdict into scheduling, status, and failure-tracking
// actions.
func (p *Pipeline) Apply(ctx context.Context, decision types.WeatherDecision, settings types.UserSettings) error {
	switch d := decision.(type) {
	case types.RainExpected:
		return p.applyRain(ctx, d, settings)
	case types.NoRain:
		return p.applyNoRain(ctx, d, settings)
	case types.DecisionError:
		return p.recordFailure(ctx, d.Kind, d.Message, settings)
	default:
		return types.NewAppError(types.ErrCodeInternalUnexpected, "unknown decision type", nil)
	}
}

func (p *Pipeline) applyRain(ctx context.Context, d types.RainExpected, settings types.UserSettings) error {
	payload := alarm.Payload{PoP: d.MaxPoP, PrecipType: d.PrecipType}
	info, err := p.sched.ScheduleNotification(ctx, d.NotificationTime, p.tz, payload)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to arm notification", "error", err)
		return p.recordFailure(ctx, types.CodeOf(err), "failed to arm notification", settings)
	}

	if _, err := p.sched.SchedulePreCheck(ctx, info.TargetTime); err != nil {
		p.logger.WarnContext(ctx, "failed to arm pre-check", "error", err)
	}

	status := types.StatusScheduledExact
	if !info.IsExact {
		status = types.StatusScheduledApproximate
	}
	if d.Stale {
		status = types.StatusUsingCachedData
	}
	p.setStatus(ctx, status, &d.MaxPoP, d.Location.Name, &d.FetchedAt, settings)
	return p.clearFailureStreak(ctx)
}

func (p *Pipeline) applyNoRain(ctx context.Context, d types.NoRain, settings types.UserSettings) error {
	if err := p.sched.Cancel(ctx); err != nil {
		return err
	}

	// The pre-check stays armed even without rain: a later forecast change
	// can still arm the notification before the user leaves.
	target := settings.NotificationTime.NextOccurrence(p.clock.Now(), p.tz)
	if _, err := p.sched.SchedulePreCheck(ctx, target); err != nil {
		p.logger.WarnContext(ctx, "failed to arm pre-check", "error", err)
	}

	status := types.StatusNoRainExpected
	if d.Stale {
		status = types.StatusUsingCachedData
	}
	p.setStatus(ctx, status, &d.MaxPoP, d.Location.Name, &d.FetchedAt, settings)
	return p.clearFailureStreak(ctx)
}

func (p *Pipeline) recordFailure(ctx context.Context, kind types.ErrorCode, message string, settings types.UserSettings) error {
	date := types.DateString(p.clock.Now(), p.tz)
	count, err := p.status.IncrementFailure(ctx, date, message)
	if err != nil {
		return err
	}

	status := types.StatusForDecisionError(kind)
	p.setStatus(ctx, status, nil, "", nil, settings)

	p.logger.WarnContext(ctx, "decision pass failed",
		"kind", string(kind),
		"message", message,
		"consecutive_failures", count,
	)

	// The warning is raised at the threshold and refreshed on every
	// further same-day failure until the streak resets.
	if count >= p.failureThreshold {
		if err := p.notifier.ShowFailure(ctx, notify.FailureNotice{
			ConsecutiveFailures: count,
			Status:              status,
			Message:             message,
		}); err != nil {
			p.logger.WarnContext(ctx, "failed to deliver failure notification", "error", err)
		}
	}
	return nil
}

func (p *Pipeline) clearFailureStreak(ctx context.Context) error {
	if err := p.status.ResetFailures(ctx); err != nil {
		return err
	}
	if err := p.notifier.ClearFailure(ctx); err != nil {
		p.logger.WarnContext(ctx, "failed to withdraw failure notification", "error", err)
	}
	return nil
}

func (p *Pipeline) setStatus(ctx context.Context, status types.AppStatus, pop *int, locationName string, fetchedAt *time.Time, settings types.UserSettings) {
	now := p.clock.Now()
	info := types.StatusInfo{
		Status:            status,
		PoP:               pop,
		Threshold:         settings.PoPThreshold,
		LastUpdate:        &now,
		ForecastFetchedAt: fetchedAt,
	}
	if locationName != "" {
		info.LocationName = &locationName
	}
	if err := p.status.SetStatus(ctx, info); err != nil {
		p.logger.WarnContext(ctx, "failed to persist status", "error", err)
	}
}

// HandleAlarmFired delivers the precipitation notification when the primary
// alarm fires. The enabled flag is re-checked at fire time, and a
// notification already delivered today is suppressed when the daemon is
// configured to do so. The schedule record is cleared in every case: the
// fired alarm is spent.
func (p *Pipeline) HandleAlarmFired(ctx context.Context, payload alarm.Payload) error {
	settings, err := p.settings.Get(ctx)
	if err != nil {
		return err
	}

	if !settings.Enabled {
		p.logger.InfoContext(ctx, "alarm fired with notifications disabled, skipping")
		return p.sched.Cancel(ctx)
	}

	today := types.DateString(p.clock.Now(), p.tz)
	if p.suppressDuplicates {
		last, err := p.status.LastNotifiedDate(ctx)
		if err != nil {
			return err
		}
		if last == today {
			p.logger.InfoContext(ctx, "notification already delivered today, suppressing", "date", today)
			return p.sched.Cancel(ctx)
		}
	}

	notice := notify.PrecipitationNotice{
		PoP:        payload.PoP,
		PrecipType: payload.PrecipType,
		TargetTime: payload.TargetTime,
	}
	if err := p.notifier.ShowPrecipitation(ctx, notice); err != nil {
		// The fired wake-up is spent either way, so the record is cleared;
		// the day stays unmarked so the next pass can still notify today.
		if cerr := p.sched.Cancel(ctx); cerr != nil {
			p.logger.WarnContext(ctx, "failed to clear schedule record", "error", cerr)
		}
		return err
	}

	if err := p.status.MarkNotified(ctx, today); err != nil {
		p.logger.WarnContext(ctx, "failed to record notification marker", "error", err)
	}
	return p.sched.Cancel(ctx)
}

// HandlePreCheckFired re-runs the decision pass with a forced forecast
// refresh shortly before the notification time. The next pre-check is
// re-armed unconditionally, whatever the pass outcome, so the chain never
// breaks.
func (p *Pipeline) HandlePreCheckFired(ctx context.Context) error {
	defer func() {
		if err := p.EnsurePreCheck(ctx); err != nil {
			p.logger.WarnContext(ctx, "failed to re-arm pre-check", "error", err)
		}
	}()

	_, err := p.Run(ctx, true)
	return err
}

// EnsurePreCheck arms the pre-check for the next notification occurrence
// under the current settings. A no-op when notifications are disabled.
func (p *Pipeline) EnsurePreCheck(ctx context.Context) error {
	settings, err := p.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled {
		return nil
	}
	target := settings.NotificationTime.NextOccurrence(p.clock.Now(), p.tz)
	_, err = p.sched.SchedulePreCheck(ctx, target)
	return err
}
