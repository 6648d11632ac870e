package alarm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"umbrella/internal/types"
)

// minLeadTime is the margin applied when a computed trigger instant has
// already passed: the wake-up is moved to now plus this lead instead.
const minLeadTime = time.Minute

// Store persists the armed schedule and pre-check records.
type Store interface {
	Save(ctx context.Context, info types.ScheduleInfo) error
	Get(ctx context.Context) (types.ScheduleInfo, error)
	Clear(ctx context.Context) error
	SavePreCheck(ctx context.Context, triggerTime time.Time) error
	GetPreCheck(ctx context.Context) (time.Time, error)
	ClearPreCheck(ctx context.Context) error
}

// Scheduler owns the notification wake-up lifecycle: arming with
// exact-then-inexact fallback, persisting what was actually armed, and
// restoring state after a restart or timezone change.
type Scheduler struct {
	driver         Driver
	store          Store
	clock          types.Clock
	bufferMinutes  int
	preCheckOffset time.Duration
	logger         *slog.Logger
}

// NewScheduler creates a Scheduler. bufferMinutes is the inexact-mode
// safety margin; preCheckOffsetMinutes is how long before the notification
// the forecast refresh fires. A nil logger defaults to slog.Default().
func NewScheduler(driver Driver, store Store, clock types.Clock, bufferMinutes, preCheckOffsetMinutes int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:         driver,
		store:          store,
		clock:          clock,
		bufferMinutes:  bufferMinutes,
		preCheckOffset: time.Duration(preCheckOffsetMinutes) * time.Minute,
		logger:         logger,
	}
}

// ScheduleAt arms the notification wake-up for the target instant.
//
// The target passes validation only if it lies in the future. The armed
// trigger may differ from the target: when exact scheduling is
// unavailable, the trigger moves earlier by the configured buffer, and a
// trigger that would land in the past is clamped to shortly after now. The
// persisted record always holds the values actually armed; TargetTime
// alone preserves the user's intent.
func (s *Scheduler) ScheduleAt(ctx context.Context, target time.Time, payload Payload) (types.ScheduleInfo, error) {
	now := s.clock.Now()
	if target.IsZero() || !target.After(now) {
		return types.ScheduleInfo{}, types.NewAppError(types.ErrCodeScheduleInvalidTime,
			"target time must be in the future", nil)
	}

	// Replace, never stack: the previous wake-up is disarmed first.
	if err := s.driver.Cancel(ctx, SlotPrimary); err != nil {
		return types.ScheduleInfo{}, types.NewAppError(types.ErrCodeScheduleUnknown,
			"failed to cancel previous wake-up", err)
	}

	payload.TargetTime = target

	info, err := s.arm(ctx, target, payload, now)
	if err != nil {
		return types.ScheduleInfo{}, err
	}

	if err := s.store.Save(ctx, info); err != nil {
		// An armed wake-up without a record cannot be restored or
		// cancelled later; disarm rather than leave it orphaned.
		if cancelErr := s.driver.Cancel(ctx, SlotPrimary); cancelErr != nil {
			s.logger.WarnContext(ctx, "failed to disarm after persist failure", "error", cancelErr)
		}
		return types.ScheduleInfo{}, err
	}

	s.logger.InfoContext(ctx, "notification scheduled",
		"target", info.TargetTime,
		"trigger", info.TriggerTime,
		"exact", info.IsExact,
		"buffer_applied", info.BufferApplied,
	)
	return info, nil
}

// arm performs the exact-then-inexact attempt and returns the record of
// what was actually armed.
func (s *Scheduler) arm(ctx context.Context, target time.Time, payload Payload, now time.Time) (types.ScheduleInfo, error) {
	// Non-nil after the exact arm was denied mid-flight; the fallback
	// failure then reports the denial as its cause.
	var denied *types.AppError

	if s.driver.CanScheduleExact(ctx) {
		err := s.driver.ArmExact(ctx, SlotPrimary, target, payload)
		if err == nil {
			return types.ScheduleInfo{
				TargetTime:  target,
				TriggerTime: target,
				IsExact:     true,
				PoP:         payload.PoP,
				PrecipType:  payload.PrecipType,
			}, nil
		}
		if !errors.Is(err, ErrExactNotPermitted) {
			return types.ScheduleInfo{}, types.NewAppError(types.ErrCodeScheduleUnknown,
				"exact wake-up arming failed", err)
		}
		// Permission was revoked between the capability check and the
		// arm; fall through to the inexact path with the original target.
		denied = types.NewAppError(types.ErrCodeScheduleExactDenied,
			"exact wake-up permission denied", err)
		s.logger.WarnContext(ctx, "exact arming denied after capability check, falling back to inexact")
	}

	trigger := target.Add(-time.Duration(s.bufferMinutes) * time.Minute)
	if !trigger.After(now) {
		trigger = now.Add(minLeadTime)
	}

	if err := s.driver.ArmInexact(ctx, SlotPrimary, trigger, payload); err != nil {
		if denied != nil {
			return types.ScheduleInfo{}, types.NewAppError(types.ErrCodeScheduleSecurity,
				"inexact fallback arming rejected after exact permission denial", denied)
		}
		if errors.Is(err, ErrExactNotPermitted) {
			return types.ScheduleInfo{}, types.NewAppError(types.ErrCodeScheduleSecurity,
				"inexact wake-up arming rejected", err)
		}
		return types.ScheduleInfo{}, types.NewAppError(types.ErrCodeScheduleUnknown,
			"inexact wake-up arming failed", err)
	}

	return types.ScheduleInfo{
		TargetTime:    target,
		TriggerTime:   trigger,
		IsExact:       false,
		BufferApplied: true,
		BufferMinutes: s.bufferMinutes,
		PoP:           payload.PoP,
		PrecipType:    payload.PrecipType,
	}, nil
}

// ScheduleNotification arms the wake-up for the next occurrence of the
// wall-clock notification time.
func (s *Scheduler) ScheduleNotification(ctx context.Context, at types.TimeOfDay, tz *time.Location, payload Payload) (types.ScheduleInfo, error) {
	target := at.NextOccurrence(s.clock.Now(), tz)
	return s.ScheduleAt(ctx, target, payload)
}

// Cancel disarms the notification wake-up and clears its record.
func (s *Scheduler) Cancel(ctx context.Context) error {
	if err := s.driver.Cancel(ctx, SlotPrimary); err != nil {
		return types.NewAppError(types.ErrCodeScheduleUnknown, "failed to disarm wake-up", err)
	}
	return s.store.Clear(ctx)
}

// RestoreIfNeeded re-arms the notification wake-up from the persisted
// record after a restart or time change. It reports whether a wake-up is
// armed afterwards.
//
// Nothing is restored when notifications are disabled or no record exists.
// A record whose target has passed is cleared, not re-armed. Otherwise the
// full scheduling pass re-runs against the stored target, so the restored
// wake-up reflects current exact-wake availability rather than the
// exactness recorded before the restart.
func (s *Scheduler) RestoreIfNeeded(ctx context.Context, enabled bool) (bool, error) {
	if !enabled {
		return false, nil
	}

	stored, err := s.store.Get(ctx)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeNotFoundSchedule {
			return false, nil
		}
		return false, err
	}

	if !stored.TargetTime.After(s.clock.Now()) {
		s.logger.InfoContext(ctx, "stored schedule already passed, clearing", "target", stored.TargetTime)
		if err := s.store.Clear(ctx); err != nil {
			return false, err
		}
		return false, nil
	}

	_, err = s.ScheduleAt(ctx, stored.TargetTime, Payload{
		PoP:        stored.PoP,
		PrecipType: stored.PrecipType,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// SchedulePreCheck arms the forecast refresh ahead of the notification
// target. The trigger is the target minus the configured offset, clamped
// to shortly after now when that lies in the past. Like the primary
// wake-up, the pre-check is armed exact when permitted and falls back to
// inexact at the same trigger; no buffer is applied because the refresh
// already runs with a margin before the notification.
func (s *Scheduler) SchedulePreCheck(ctx context.Context, notificationTarget time.Time) (time.Time, error) {
	now := s.clock.Now()
	trigger := notificationTarget.Add(-s.preCheckOffset)
	if !trigger.After(now) {
		trigger = now.Add(minLeadTime)
	}
	payload := Payload{TargetTime: notificationTarget}

	if err := s.driver.Cancel(ctx, SlotPreCheck); err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeScheduleUnknown, "failed to cancel previous pre-check", err)
	}

	var denied *types.AppError
	armed := false
	if s.driver.CanScheduleExact(ctx) {
		err := s.driver.ArmExact(ctx, SlotPreCheck, trigger, payload)
		switch {
		case err == nil:
			armed = true
		case errors.Is(err, ErrExactNotPermitted):
			denied = types.NewAppError(types.ErrCodeScheduleExactDenied,
				"exact pre-check permission denied", err)
			s.logger.WarnContext(ctx, "exact pre-check arming denied, falling back to inexact")
		default:
			return time.Time{}, types.NewAppError(types.ErrCodeScheduleUnknown, "pre-check arming failed", err)
		}
	}
	if !armed {
		if err := s.driver.ArmInexact(ctx, SlotPreCheck, trigger, payload); err != nil {
			if denied != nil {
				return time.Time{}, types.NewAppError(types.ErrCodeScheduleSecurity,
					"inexact pre-check arming rejected after exact permission denial", denied)
			}
			return time.Time{}, types.NewAppError(types.ErrCodeScheduleUnknown, "pre-check arming failed", err)
		}
	}

	if err := s.store.SavePreCheck(ctx, trigger); err != nil {
		return time.Time{}, err
	}

	s.logger.InfoContext(ctx, "pre-check scheduled", "trigger", trigger, "notification_target", notificationTarget)
	return trigger, nil
}

// CancelPreCheck disarms the pre-check and clears its record.
func (s *Scheduler) CancelPreCheck(ctx context.Context) error {
	if err := s.driver.Cancel(ctx, SlotPreCheck); err != nil {
		return types.NewAppError(types.ErrCodeScheduleUnknown, "failed to disarm pre-check", err)
	}
	return s.store.ClearPreCheck(ctx)
}

// RestorePreCheckIfNeeded re-arms the pre-check from its record. A stored
// trigger in the past is cleared and reported as not restored; the caller
// schedules the next pre-check from current settings.
func (s *Scheduler) RestorePreCheckIfNeeded(ctx context.Context, enabled bool) (bool, error) {
	if !enabled {
		return false, nil
	}

	trigger, err := s.store.GetPreCheck(ctx)
	if err != nil {
		if types.CodeOf(err) == types.ErrCodeNotFoundSchedule {
			return false, nil
		}
		return false, err
	}

	if !trigger.After(s.clock.Now()) {
		if err := s.store.ClearPreCheck(ctx); err != nil {
			return false, err
		}
		return false, nil
	}

	if s.driver.CanScheduleExact(ctx) {
		err := s.driver.ArmExact(ctx, SlotPreCheck, trigger, Payload{})
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrExactNotPermitted) {
			return false, types.NewAppError(types.ErrCodeScheduleUnknown, "pre-check re-arming failed", err)
		}
	}
	if err := s.driver.ArmInexact(ctx, SlotPreCheck, trigger, Payload{}); err != nil {
		return false, types.NewAppError(types.ErrCodeScheduleUnknown, "pre-check re-arming rejected", err)
	}
	return true, nil
}
