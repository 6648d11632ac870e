package db

import (
	"context"
	"fmt"

	"umbrella/internal/types"
)

// SettingsRepository persists the singleton user settings row.
type SettingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a SettingsRepository backed by the given
// database connection (pool or transaction).
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored settings, or the defaults when the user has never
// saved any. Absence is not an error: a fresh install behaves identically
// to one where the defaults were saved explicitly.
func (r *SettingsRepository) Get(ctx context.Context) (types.UserSettings, error) {
	var (
		hour, minute, threshold int
		enabled                 bool
		manualLat, manualLon    *float64
		manualName              *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT notification_hour, notification_minute, pop_threshold, enabled,
		        manual_latitude, manual_longitude, manual_name
		 FROM user_settings WHERE id = 1`,
	).Scan(&hour, &minute, &threshold, &enabled, &manualLat, &manualLon, &manualName)
	if err != nil {
		if isNoRows(err) {
			return types.DefaultSettings(), nil
		}
		return types.UserSettings{}, types.NewAppError(types.ErrCodeInternalDB, "failed to read settings", err)
	}

	s := types.UserSettings{
		NotificationTime: types.TimeOfDay{Hour: hour, Minute: minute},
		PoPThreshold:     threshold,
		Enabled:          enabled,
	}
	if manualLat != nil && manualLon != nil && manualName != nil {
		s.ManualLocation = &types.ManualLocation{
			CityName:  *manualName,
			Latitude:  *manualLat,
			Longitude: *manualLon,
		}
	}
	return s, nil
}

// Save validates and upserts the settings row.
func (r *SettingsRepository) Save(ctx context.Context, s types.UserSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	var (
		manualLat, manualLon *float64
		manualName           *string
	)
	if s.ManualLocation != nil {
		manualLat = &s.ManualLocation.Latitude
		manualLon = &s.ManualLocation.Longitude
		manualName = &s.ManualLocation.CityName
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO user_settings
		 (id, notification_hour, notification_minute, pop_threshold, enabled,
		  manual_latitude, manual_longitude, manual_name, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   notification_hour = EXCLUDED.notification_hour,
		   notification_minute = EXCLUDED.notification_minute,
		   pop_threshold = EXCLUDED.pop_threshold,
		   enabled = EXCLUDED.enabled,
		   manual_latitude = EXCLUDED.manual_latitude,
		   manual_longitude = EXCLUDED.manual_longitude,
		   manual_name = EXCLUDED.manual_name,
		   updated_at = NOW()`,
		s.NotificationTime.Hour,
		s.NotificationTime.Minute,
		s.PoPThreshold,
		s.Enabled,
		manualLat,
		manualLon,
		manualName,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("failed to save settings (time %s)", s.NotificationTime), err)
	}
	return nil
}
