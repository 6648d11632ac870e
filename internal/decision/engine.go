// Package decision implements the core verdict of the daemon: given the
// user's settings, a resolved location, and the forecast for the target
// date, decide whether a precipitation notification should be armed.
package decision

import (
	"context"
	"log/slog"
	"time"

	"umbrella/internal/types"
	"umbrella/internal/weather"
)

// SettingsSource reads the current user settings.
type SettingsSource interface {
	Get(ctx context.Context) (types.UserSettings, error)
}

// LocationResolver resolves the coordinate to evaluate.
type LocationResolver interface {
	Resolve(ctx context.Context, settings types.UserSettings) (types.Location, error)
}

// ForecastSource serves the forecast for a location and target date.
type ForecastSource interface {
	GetForecast(ctx context.Context, loc types.Location, targetDate time.Time, forceRefresh bool) (weather.Result, error)
}

// Engine computes WeatherDecisions.
type Engine struct {
	settings  SettingsSource
	locations LocationResolver
	forecasts ForecastSource
	clock     types.Clock
	tz        *time.Location
	logger    *slog.Logger
}

// NewEngine creates a decision engine. A nil logger defaults to
// slog.Default().
func NewEngine(
	settings SettingsSource,
	locations LocationResolver,
	forecasts ForecastSource,
	clock types.Clock,
	tz *time.Location,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		settings:  settings,
		locations: locations,
		forecasts: forecasts,
		clock:     clock,
		tz:        tz,
		logger:    logger,
	}
}

// TargetDate returns the calendar date the decision evaluates: today when
// the notification time has not yet passed, otherwise tomorrow. This is the
// date of the next occurrence of the notification time.
func TargetDate(now time.Time, notificationTime types.TimeOfDay, tz *time.Location) time.Time {
	return notificationTime.NextOccurrence(now, tz)
}

// Decide runs a full decision pass. It always returns a verdict: failures
// to resolve a location or fetch a forecast are surfaced as a DecisionError
// carrying the failure kind, never as a Go error. The settings snapshot the
// verdict was computed under is returned alongside for the caller to act
// on.
func (e *Engine) Decide(ctx context.Context, forceRefresh bool) (types.WeatherDecision, types.UserSettings) {
	settings, err := e.settings.Get(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to load settings for decision", "error", err)
		return types.DecisionError{Kind: types.CodeOf(err), Message: "failed to load settings"}, types.DefaultSettings()
	}

	loc, err := e.locations.Resolve(ctx, settings)
	if err != nil {
		return types.DecisionError{Kind: types.CodeOf(err), Message: "failed to resolve location"}, settings
	}

	now := e.clock.Now()
	targetDate := TargetDate(now, settings.NotificationTime, e.tz)

	result, err := e.forecasts.GetForecast(ctx, loc, targetDate, forceRefresh)
	if err != nil {
		return types.DecisionError{Kind: types.CodeOf(err), Message: "failed to fetch forecast"}, settings
	}

	startHour := settings.PoPCheckStartHour()
	endHour := settings.PoPCheckEndHour()
	maxPoP := result.Forecast.MaxPoPInRange(startHour, endHour)
	stale := result.Warning != ""

	e.logger.InfoContext(ctx, "decision pass evaluated",
		"target_date", types.DateString(targetDate, e.tz),
		"window_start", startHour,
		"window_end", endHour,
		"max_pop", maxPoP,
		"threshold", settings.PoPThreshold,
		"from_cache", result.FromCache,
		"stale", stale,
	)

	// Threshold comparison is inclusive: a probability equal to the
	// threshold arms the notification.
	if maxPoP >= settings.PoPThreshold {
		return types.RainExpected{
			MaxPoP:           maxPoP,
			Location:         loc,
			NotificationTime: settings.NotificationTime,
			PrecipType:       result.Forecast.DominantPrecipitationType(startHour, endHour),
			FetchedAt:        result.Forecast.FetchedAt,
			Stale:            stale,
		}, settings
	}

	return types.NoRain{
		MaxPoP:    maxPoP,
		Threshold: settings.PoPThreshold,
		Location:  loc,
		FetchedAt: result.Forecast.FetchedAt,
		Stale:     stale,
	}, settings
}
