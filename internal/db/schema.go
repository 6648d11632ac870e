package db

import (
	"context"

	"umbrella/internal/types"
)

// schemaStatements creates the daemon's tables. The settings, schedule,
// pre-check, status, and location rows are all singletons enforced by a
// CHECK (id = 1) constraint; the forecast cache is keyed by location.
//
// schedule_info.legacy_trigger_time carries records written by the old
// single-value format, which stored only the trigger instant. Rows in that
// format have the new columns NULL; scheduleRowToInfo maps them with
// optimistic defaults.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_settings (
		id                  SMALLINT PRIMARY KEY CHECK (id = 1),
		notification_hour   INT NOT NULL,
		notification_minute INT NOT NULL,
		pop_threshold       INT NOT NULL,
		enabled             BOOLEAN NOT NULL,
		manual_latitude     DOUBLE PRECISION,
		manual_longitude    DOUBLE PRECISION,
		manual_name         TEXT,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_info (
		id                  SMALLINT PRIMARY KEY CHECK (id = 1),
		target_time         TIMESTAMPTZ,
		trigger_time        TIMESTAMPTZ,
		is_exact            BOOLEAN,
		buffer_applied      BOOLEAN,
		buffer_minutes      INT,
		pop                 INT,
		precip_type         TEXT,
		legacy_trigger_time TIMESTAMPTZ,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS precheck_info (
		id           SMALLINT PRIMARY KEY CHECK (id = 1),
		trigger_time TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS app_status (
		id                   SMALLINT PRIMARY KEY CHECK (id = 1),
		status_code          TEXT NOT NULL,
		pop                  INT,
		threshold            INT NOT NULL,
		location_name        TEXT,
		last_update          TIMESTAMPTZ,
		consecutive_failures INT NOT NULL DEFAULT 0,
		last_failure_date    TEXT,
		last_failure_reason  TEXT,
		last_notified_date   TEXT,
		forecast_fetched_at  TIMESTAMPTZ
	)`,
	// Upgrades databases created before the column existed.
	`ALTER TABLE app_status ADD COLUMN IF NOT EXISTS forecast_fetched_at TIMESTAMPTZ`,
	`CREATE TABLE IF NOT EXISTS location_cache (
		id         SMALLINT PRIMARY KEY CHECK (id = 1),
		latitude   DOUBLE PRECISION NOT NULL,
		longitude  DOUBLE PRECISION NOT NULL,
		name       TEXT,
		source     TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS forecast_cache (
		cache_key  TEXT PRIMARY KEY,
		payload    BYTEA NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates any missing tables. Safe to run on every startup.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to ensure schema", err)
		}
	}
	return nil
}
