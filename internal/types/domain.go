// Package types defines the domain model and error taxonomy shared by every
// component of the umbrella daemon: forecast data, user settings, the
// persisted schedule record, decision outcomes, and the status snapshot.
package types

import (
	"fmt"
	"time"
)

// PrecipitationType classifies the expected precipitation for the
// notification payload.
type PrecipitationType string

const (
	PrecipRain  PrecipitationType = "RAIN"
	PrecipSnow  PrecipitationType = "SNOW"
	PrecipMixed PrecipitationType = "MIXED"
)

// WMO weather code sets used to classify hourly forecast entries.
// Codes outside these sets carry no precipitation type.
var (
	rainCodes  = map[int]struct{}{51: {}, 53: {}, 55: {}, 61: {}, 63: {}, 65: {}, 80: {}, 81: {}, 82: {}}
	snowCodes  = map[int]struct{}{71: {}, 73: {}, 75: {}, 77: {}, 85: {}, 86: {}}
	mixedCodes = map[int]struct{}{56: {}, 57: {}, 66: {}, 67: {}}
)

// PrecipitationTypeFromCode maps a WMO weather code to a precipitation type.
// Returns ("", false) for nil codes and codes that do not indicate
// precipitation.
func PrecipitationTypeFromCode(code *int) (PrecipitationType, bool) {
	if code == nil {
		return "", false
	}
	if _, ok := rainCodes[*code]; ok {
		return PrecipRain, true
	}
	if _, ok := snowCodes[*code]; ok {
		return PrecipSnow, true
	}
	if _, ok := mixedCodes[*code]; ok {
		return PrecipMixed, true
	}
	return "", false
}

// ParsePrecipitationType converts a stored string back to a
// PrecipitationType, defaulting to rain for unknown values so a corrupted
// payload still renders a sensible notification.
func ParsePrecipitationType(s string) PrecipitationType {
	switch PrecipitationType(s) {
	case PrecipSnow:
		return PrecipSnow
	case PrecipMixed:
		return PrecipMixed
	default:
		return PrecipRain
	}
}

// LocationSource tags which step of the fallback chain produced a location.
type LocationSource string

const (
	SourceGPS    LocationSource = "gps"
	SourceCached LocationSource = "cached"
	SourceManual LocationSource = "manual"
)

// Location is a resolved coordinate with an optional human-readable name.
type Location struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Name      string         `json:"name,omitempty"`
	Source    LocationSource `json:"source"`
}

// HourlyForecast is a single hour of forecast data. Temperature and
// WeatherCode are preserved as absent when the upstream omits them;
// precipitation probability defaults to 0 at mapping time.
type HourlyForecast struct {
	Time        time.Time `json:"time"`
	PoP         int       `json:"pop"` // probability of precipitation, 0-100
	Temperature *float64  `json:"temperature,omitempty"`
	WeatherCode *int      `json:"weather_code,omitempty"`
}

// PrecipitationType classifies this hour's weather code.
func (h HourlyForecast) PrecipitationType() (PrecipitationType, bool) {
	return PrecipitationTypeFromCode(h.WeatherCode)
}

// DailyForecast holds the hours of a single calendar date in the reference
// timezone.
type DailyForecast struct {
	Date      time.Time        `json:"date"` // midnight of the target date, reference timezone
	Hours     []HourlyForecast `json:"hours"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// MaxPoPInRange returns the maximum precipitation probability among hours
// whose hour-of-day falls in [startHour, endHour). Returns 0 when the
// filtered set is empty.
func (d DailyForecast) MaxPoPInRange(startHour, endHour int) int {
	maxPoP := 0
	for _, h := range d.Hours {
		hr := h.Time.Hour()
		if hr < startHour || hr >= endHour {
			continue
		}
		if h.PoP > maxPoP {
			maxPoP = h.PoP
		}
	}
	return maxPoP
}

// AvgPoPInRange returns the unweighted mean precipitation probability over
// the same [startHour, endHour) window. Returns 0 when the filtered set is
// empty.
func (d DailyForecast) AvgPoPInRange(startHour, endHour int) int {
	sum, n := 0, 0
	for _, h := range d.Hours {
		hr := h.Time.Hour()
		if hr < startHour || hr >= endHour {
			continue
		}
		sum += h.PoP
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// DominantPrecipitationType classifies the window's precipitation:
//   - no typed hours -> rain (default)
//   - any mixed-coded hour, or both rain and snow present -> mixed
//   - otherwise the single type present
func (d DailyForecast) DominantPrecipitationType(startHour, endHour int) PrecipitationType {
	seen := make(map[PrecipitationType]struct{})
	for _, h := range d.Hours {
		hr := h.Time.Hour()
		if hr < startHour || hr >= endHour {
			continue
		}
		if pt, ok := h.PrecipitationType(); ok {
			seen[pt] = struct{}{}
		}
	}
	switch {
	case len(seen) == 0:
		return PrecipRain
	case hasKey(seen, PrecipMixed):
		return PrecipMixed
	case len(seen) > 1:
		return PrecipMixed
	case hasKey(seen, PrecipSnow):
		return PrecipSnow
	default:
		return PrecipRain
	}
}

func hasKey(m map[PrecipitationType]struct{}, k PrecipitationType) bool {
	_, ok := m[k]
	return ok
}

// TimeOfDay is a wall-clock time with hour and minute components.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseTimeOfDay parses a "HH:MM" string into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	n, err := fmt.Sscanf(s, "%d:%d", &h, &m)
	if err != nil || n != 2 {
		return TimeOfDay{}, NewAppError(ErrCodeValidationInvalidTime,
			fmt.Sprintf("expected HH:MM format, got %q", s), err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, NewAppError(ErrCodeValidationInvalidTime,
			fmt.Sprintf("time out of range: %q", s), nil)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// String formats the time as zero-padded "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes converts the time to minutes since midnight for comparison.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// NextOccurrence returns the next instant at which this wall-clock time
// occurs in the given timezone: today if not yet passed, otherwise tomorrow.
func (t TimeOfDay) NextOccurrence(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), t.Hour, t.Minute, 0, 0, loc)
	if candidate.After(now) {
		return candidate
	}
	return candidate.AddDate(0, 0, 1)
}

// DateString formats an instant as the "YYYY-MM-DD" calendar day in the
// given timezone. Used as the key for duplicate suppression and the per-day
// failure counter.
func DateString(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
