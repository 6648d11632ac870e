package db

import (
	"context"
	"time"

	"umbrella/internal/types"
)

// ScheduleRepository persists the single outstanding alarm record and the
// pre-check trigger. Both are singleton rows.
type ScheduleRepository struct {
	db DBTX
}

// NewScheduleRepository creates a ScheduleRepository backed by the given
// database connection (pool or transaction).
func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// scheduleRow mirrors the schedule_info columns. The structured columns are
// nullable so rows written by the old single-value format (legacy trigger
// time only) can coexist with current ones.
type scheduleRow struct {
	TargetTime        *time.Time
	TriggerTime       *time.Time
	IsExact           *bool
	BufferApplied     *bool
	BufferMinutes     *int
	PoP               *int
	PrecipType        *string
	LegacyTriggerTime *time.Time
}

// scheduleRowToInfo converts a stored row to a ScheduleInfo.
//
// Rows written by the old format carry only legacy_trigger_time. Those are
// mapped with optimistic defaults: the trigger doubles as the target, the
// alarm is assumed exact, and no buffer is assumed. The defaults keep
// recovery conservative; a re-schedule overwrites them with real values.
//
// Returns false when the row holds neither format.
func scheduleRowToInfo(row scheduleRow) (types.ScheduleInfo, bool) {
	if row.TargetTime != nil && row.TriggerTime != nil {
		info := types.ScheduleInfo{
			TargetTime:  *row.TargetTime,
			TriggerTime: *row.TriggerTime,
		}
		if row.IsExact != nil {
			info.IsExact = *row.IsExact
		}
		if row.BufferApplied != nil {
			info.BufferApplied = *row.BufferApplied
		}
		if row.BufferMinutes != nil {
			info.BufferMinutes = *row.BufferMinutes
		}
		if row.PoP != nil {
			info.PoP = *row.PoP
		}
		if row.PrecipType != nil {
			info.PrecipType = types.ParsePrecipitationType(*row.PrecipType)
		} else {
			info.PrecipType = types.PrecipRain
		}
		return info, true
	}

	if row.LegacyTriggerTime != nil {
		return types.ScheduleInfo{
			TargetTime:  *row.LegacyTriggerTime,
			TriggerTime: *row.LegacyTriggerTime,
			IsExact:     true,
			PrecipType:  types.PrecipRain,
		}, true
	}

	return types.ScheduleInfo{}, false
}

// Save upserts the schedule record. The legacy column is cleared so a
// migrated record is not re-migrated on the next read.
func (r *ScheduleRepository) Save(ctx context.Context, info types.ScheduleInfo) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO schedule_info
		 (id, target_time, trigger_time, is_exact, buffer_applied,
		  buffer_minutes, pop, precip_type, legacy_trigger_time, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, NULL, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   target_time = EXCLUDED.target_time,
		   trigger_time = EXCLUDED.trigger_time,
		   is_exact = EXCLUDED.is_exact,
		   buffer_applied = EXCLUDED.buffer_applied,
		   buffer_minutes = EXCLUDED.buffer_minutes,
		   pop = EXCLUDED.pop,
		   precip_type = EXCLUDED.precip_type,
		   legacy_trigger_time = NULL,
		   updated_at = NOW()`,
		info.TargetTime,
		info.TriggerTime,
		info.IsExact,
		info.BufferApplied,
		info.BufferMinutes,
		info.PoP,
		string(info.PrecipType),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save schedule record", err)
	}
	return nil
}

// Get returns the stored schedule record, migrating legacy-format rows on
// the fly. Returns an AppError with code ErrCodeNotFoundSchedule when no
// record exists.
func (r *ScheduleRepository) Get(ctx context.Context) (types.ScheduleInfo, error) {
	var row scheduleRow
	err := r.db.QueryRow(ctx,
		`SELECT target_time, trigger_time, is_exact, buffer_applied,
		        buffer_minutes, pop, precip_type, legacy_trigger_time
		 FROM schedule_info WHERE id = 1`,
	).Scan(
		&row.TargetTime,
		&row.TriggerTime,
		&row.IsExact,
		&row.BufferApplied,
		&row.BufferMinutes,
		&row.PoP,
		&row.PrecipType,
		&row.LegacyTriggerTime,
	)
	if err != nil {
		if isNoRows(err) {
			return types.ScheduleInfo{}, types.NewAppError(types.ErrCodeNotFoundSchedule, "no schedule record", nil)
		}
		return types.ScheduleInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to read schedule record", err)
	}

	info, ok := scheduleRowToInfo(row)
	if !ok {
		return types.ScheduleInfo{}, types.NewAppError(types.ErrCodeNotFoundSchedule, "no schedule record", nil)
	}
	return info, nil
}

// Clear removes the schedule record. Clearing an absent record is not an
// error.
func (r *ScheduleRepository) Clear(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM schedule_info WHERE id = 1`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to clear schedule record", err)
	}
	return nil
}

// SavePreCheck upserts the pre-check trigger instant.
func (r *ScheduleRepository) SavePreCheck(ctx context.Context, triggerTime time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO precheck_info (id, trigger_time, updated_at)
		 VALUES (1, $1, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   trigger_time = EXCLUDED.trigger_time,
		   updated_at = NOW()`,
		triggerTime,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save pre-check record", err)
	}
	return nil
}

// GetPreCheck returns the stored pre-check trigger instant. Returns an
// AppError with code ErrCodeNotFoundSchedule when no record exists.
func (r *ScheduleRepository) GetPreCheck(ctx context.Context) (time.Time, error) {
	var trigger time.Time
	err := r.db.QueryRow(ctx,
		`SELECT trigger_time FROM precheck_info WHERE id = 1`,
	).Scan(&trigger)
	if err != nil {
		if isNoRows(err) {
			return time.Time{}, types.NewAppError(types.ErrCodeNotFoundSchedule, "no pre-check record", nil)
		}
		return time.Time{}, types.NewAppError(types.ErrCodeInternalDB, "failed to read pre-check record", err)
	}
	return trigger, nil
}

// ClearPreCheck removes the pre-check record.
func (r *ScheduleRepository) ClearPreCheck(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM precheck_info WHERE id = 1`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to clear pre-check record", err)
	}
	return nil
}
