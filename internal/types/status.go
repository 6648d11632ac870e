package types

import (
	"fmt"
	"time"
)

// AppStatus is the persisted status code the UI polls for.
type AppStatus string

const (
	// Normal states.
	StatusScheduledExact       AppStatus = "SCHED_EXACT"
	StatusScheduledApproximate AppStatus = "SCHED_APPROX"
	StatusNoRainExpected       AppStatus = "NO_RAIN"

	// Failure states.
	StatusFetchFailedNetwork  AppStatus = "ERR_NETWORK"
	StatusFetchFailedLocation AppStatus = "ERR_LOCATION"
	StatusFetchFailedAPI      AppStatus = "ERR_API"
	StatusUsingCachedData     AppStatus = "CACHED"

	// Permission/setting required.
	StatusPermissionMissingNotification AppStatus = "PERM_NOTIF"
	StatusPermissionMissingLocation     AppStatus = "PERM_LOC"
	StatusExactAlarmUnavailable         AppStatus = "WARN_INEXACT"

	// Initial / in progress.
	StatusInitial  AppStatus = "INIT"
	StatusChecking AppStatus = "CHECKING"
	StatusUnknown  AppStatus = "UNKNOWN"
)

// IsError reports whether the status represents a failure.
func (s AppStatus) IsError() bool {
	switch s {
	case StatusFetchFailedNetwork, StatusFetchFailedLocation, StatusFetchFailedAPI:
		return true
	}
	return false
}

// RequiresAction reports whether the user must intervene to make progress.
func (s AppStatus) RequiresAction() bool {
	switch s {
	case StatusFetchFailedLocation, StatusPermissionMissingNotification,
		StatusPermissionMissingLocation, StatusInitial:
		return true
	}
	return false
}

// StatusFromCode maps a stored code back to an AppStatus, defaulting to
// StatusUnknown for unrecognized values.
func StatusFromCode(code string) AppStatus {
	switch s := AppStatus(code); s {
	case StatusScheduledExact, StatusScheduledApproximate, StatusNoRainExpected,
		StatusFetchFailedNetwork, StatusFetchFailedLocation, StatusFetchFailedAPI,
		StatusUsingCachedData, StatusPermissionMissingNotification,
		StatusPermissionMissingLocation, StatusExactAlarmUnavailable,
		StatusInitial, StatusChecking:
		return s
	default:
		return StatusUnknown
	}
}

// StatusForDecisionError maps a decision error kind to the status shown to
// the UI.
func StatusForDecisionError(kind ErrorCode) AppStatus {
	switch kind {
	case ErrCodeFetchNetwork:
		return StatusFetchFailedNetwork
	case ErrCodeLocationPermission, ErrCodeLocationManual:
		return StatusFetchFailedLocation
	default:
		return StatusFetchFailedAPI
	}
}

// StatusInfo is the persisted status snapshot served to the UI.
type StatusInfo struct {
	Status       AppStatus  `json:"status"`
	PoP          *int       `json:"pop,omitempty"`
	Threshold    int        `json:"threshold"`
	LocationName *string    `json:"location_name,omitempty"`
	LastUpdate   *time.Time `json:"last_update,omitempty"`
	// ForecastFetchedAt is when the forecast behind the snapshot was
	// retrieved from the provider. Nil for states with no forecast, such
	// as failures and the initial state.
	ForecastFetchedAt *time.Time `json:"forecast_fetched_at,omitempty"`
}

// ForecastAge renders how old a forecast is in wall-clock terms, for
// display next to a status snapshot.
func ForecastAge(fetchedAt, now time.Time) string {
	mins := int(now.Sub(fetchedAt).Minutes())
	switch {
	case mins < 1:
		return "just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	default:
		return fmt.Sprintf("%dh %dm ago", mins/60, mins%60)
	}
}
