package db

import (
	"context"

	"umbrella/internal/types"
)

// StatusRepository persists the singleton status snapshot shown to the UI,
// the per-day consecutive failure counter, and the duplicate-suppression
// marker.
type StatusRepository struct {
	db DBTX
}

// NewStatusRepository creates a StatusRepository backed by the given
// database connection (pool or transaction).
func NewStatusRepository(db DBTX) *StatusRepository {
	return &StatusRepository{db: db}
}

// ensureRow inserts the initial status row if none exists, so subsequent
// UPDATE statements always have a target.
const ensureStatusRow = `INSERT INTO app_status (id, status_code, threshold)
	 VALUES (1, 'INIT', $1)
	 ON CONFLICT (id) DO NOTHING`

// Get returns the current status snapshot. A fresh database reports the
// initial state.
func (r *StatusRepository) Get(ctx context.Context) (types.StatusInfo, error) {
	var (
		code string
		info types.StatusInfo
	)
	err := r.db.QueryRow(ctx,
		`SELECT status_code, pop, threshold, location_name, last_update, forecast_fetched_at
		 FROM app_status WHERE id = 1`,
	).Scan(&code, &info.PoP, &info.Threshold, &info.LocationName, &info.LastUpdate, &info.ForecastFetchedAt)
	if err != nil {
		if isNoRows(err) {
			return types.StatusInfo{
				Status:    types.StatusInitial,
				Threshold: types.DefaultPoPThreshold,
			}, nil
		}
		return types.StatusInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to read status", err)
	}
	info.Status = types.StatusFromCode(code)
	return info, nil
}

// SetStatus overwrites the status snapshot fields, leaving the failure
// counter and notification marker untouched.
func (r *StatusRepository) SetStatus(ctx context.Context, info types.StatusInfo) error {
	if _, err := r.db.Exec(ctx, ensureStatusRow, info.Threshold); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to initialize status row", err)
	}
	_, err := r.db.Exec(ctx,
		`UPDATE app_status
		 SET status_code = $1, pop = $2, threshold = $3, location_name = $4,
		     last_update = $5, forecast_fetched_at = $6
		 WHERE id = 1`,
		string(info.Status),
		info.PoP,
		info.Threshold,
		info.LocationName,
		info.LastUpdate,
		info.ForecastFetchedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update status", err)
	}
	return nil
}

// nextFailureCount applies the day-boundary rule for the failure streak: a
// failure on the same calendar day as the last one extends the streak, any
// other day starts a new streak at 1 rather than carrying yesterday's count
// forward.
func nextFailureCount(lastDate *string, current int, today string) int {
	if lastDate != nil && *lastDate == today {
		return current + 1
	}
	return 1
}

// IncrementFailure bumps the consecutive failure counter for the given
// calendar day and returns the new count. The counter tracks only same-day
// streaks; the daemon is the sole writer, so the read-then-write pair needs
// no row lock.
func (r *StatusRepository) IncrementFailure(ctx context.Context, date string, reason string) (int, error) {
	if _, err := r.db.Exec(ctx, ensureStatusRow, types.DefaultPoPThreshold); err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to initialize status row", err)
	}

	var (
		lastDate *string
		current  int
	)
	err := r.db.QueryRow(ctx,
		`SELECT last_failure_date, consecutive_failures FROM app_status WHERE id = 1`,
	).Scan(&lastDate, &current)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to read failure counter", err)
	}

	count := nextFailureCount(lastDate, current, date)
	_, err = r.db.Exec(ctx,
		`UPDATE app_status
		 SET consecutive_failures = $1, last_failure_date = $2, last_failure_reason = $3
		 WHERE id = 1`,
		count,
		date,
		reason,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to increment failure counter", err)
	}
	return count, nil
}

// ResetFailures clears the failure streak after a successful scheduling
// pass.
func (r *StatusRepository) ResetFailures(ctx context.Context) error {
	_, err := r.db.Exec(ctx,
		`UPDATE app_status
		 SET consecutive_failures = 0, last_failure_date = NULL, last_failure_reason = NULL
		 WHERE id = 1`,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reset failure counter", err)
	}
	return nil
}

// LastNotifiedDate returns the calendar day of the last delivered
// precipitation notification, or "" when none was recorded.
func (r *StatusRepository) LastNotifiedDate(ctx context.Context) (string, error) {
	var date *string
	err := r.db.QueryRow(ctx,
		`SELECT last_notified_date FROM app_status WHERE id = 1`,
	).Scan(&date)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to read notification marker", err)
	}
	if date == nil {
		return "", nil
	}
	return *date, nil
}

// MarkNotified records the calendar day a precipitation notification was
// delivered, for duplicate suppression.
func (r *StatusRepository) MarkNotified(ctx context.Context, date string) error {
	if _, err := r.db.Exec(ctx, ensureStatusRow, types.DefaultPoPThreshold); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to initialize status row", err)
	}
	_, err := r.db.Exec(ctx,
		`UPDATE app_status SET last_notified_date = $1 WHERE id = 1`,
		date,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record notification marker", err)
	}
	return nil
}
