package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Settings defaults and bounds.
const (
	DefaultPoPThreshold = 40
	MinPoPThreshold     = 0
	MaxPoPThreshold     = 80
	PoPThresholdStep    = 10

	// The probability-check window extends this many hours either side of
	// the notification time, clamped to the calendar day.
	PoPWindowHours = 2
)

// DefaultNotificationTime is 07:30 local time.
var DefaultNotificationTime = TimeOfDay{Hour: 7, Minute: 30}

// ManualLocation is a user-configured coordinate used when no GPS fix is
// available.
type ManualLocation struct {
	CityName  string  `json:"city_name" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// UserSettings is the immutable-per-read settings snapshot.
type UserSettings struct {
	NotificationTime TimeOfDay       `json:"notification_time"`
	PoPThreshold     int             `json:"pop_threshold" validate:"min=0,max=80"`
	Enabled          bool            `json:"enabled"`
	ManualLocation   *ManualLocation `json:"manual_location,omitempty"`
}

// DefaultSettings returns the settings applied before the user has
// configured anything.
func DefaultSettings() UserSettings {
	return UserSettings{
		NotificationTime: DefaultNotificationTime,
		PoPThreshold:     DefaultPoPThreshold,
		Enabled:          true,
	}
}

// PoPCheckStartHour is the lower bound of the probability-check window,
// clamped to 0.
func (s UserSettings) PoPCheckStartHour() int {
	h := s.NotificationTime.Hour - PoPWindowHours
	if h < 0 {
		return 0
	}
	return h
}

// PoPCheckEndHour is the upper bound of the probability-check window,
// clamped to 23.
func (s UserSettings) PoPCheckEndHour() int {
	h := s.NotificationTime.Hour + PoPWindowHours
	if h > 23 {
		return 23
	}
	return h
}

var settingsValidator = validator.New()

// Validate checks field bounds and the nested manual location. The
// threshold must land on the selector step.
func (s UserSettings) Validate() error {
	if m := s.ManualLocation; m != nil {
		if m.CityName == "" {
			return NewAppError(ErrCodeValidationMissingField, "manual location needs a city name", nil)
		}
		if m.Latitude < -90 || m.Latitude > 90 {
			return NewAppError(ErrCodeValidationInvalidLat,
				fmt.Sprintf("latitude %v out of range", m.Latitude), nil)
		}
		if m.Longitude < -180 || m.Longitude > 180 {
			return NewAppError(ErrCodeValidationInvalidLon,
				fmt.Sprintf("longitude %v out of range", m.Longitude), nil)
		}
	}
	if err := settingsValidator.Struct(s); err != nil {
		return NewAppError(ErrCodeValidationThresholdRange, "invalid settings", err)
	}
	if s.PoPThreshold%PoPThresholdStep != 0 {
		return NewAppError(ErrCodeValidationThresholdRange,
			fmt.Sprintf("threshold must be a multiple of %d", PoPThresholdStep), nil)
	}
	return nil
}

// PresetCity is an entry of the built-in manual-location picker.
type PresetCity = ManualLocation

// PresetCities is the built-in city list offered for manual location
// selection.
var PresetCities = []PresetCity{
	{CityName: "Seoul", Latitude: 37.5665, Longitude: 126.9780},
	{CityName: "Busan", Latitude: 35.1796, Longitude: 129.0756},
	{CityName: "Incheon", Latitude: 37.4563, Longitude: 126.7052},
	{CityName: "Daegu", Latitude: 35.8714, Longitude: 128.6014},
	{CityName: "Daejeon", Latitude: 36.3504, Longitude: 127.3845},
	{CityName: "Gwangju", Latitude: 35.1595, Longitude: 126.8526},
	{CityName: "Ulsan", Latitude: 35.5384, Longitude: 129.3114},
	{CityName: "Sejong", Latitude: 36.4800, Longitude: 127.2890},
	{CityName: "Suwon", Latitude: 37.2636, Longitude: 127.0286},
	{CityName: "Changwon", Latitude: 35.2270, Longitude: 128.6811},
	{CityName: "Goyang", Latitude: 37.6584, Longitude: 126.8320},
	{CityName: "Yongin", Latitude: 37.2410, Longitude: 127.1775},
	{CityName: "Cheongju", Latitude: 36.6424, Longitude: 127.4890},
	{CityName: "Jeonju", Latitude: 35.8242, Longitude: 127.1480},
	{CityName: "Cheonan", Latitude: 36.8151, Longitude: 127.1139},
	{CityName: "Jeju", Latitude: 33.4996, Longitude: 126.5312},
}

// FindPresetCity looks a preset city up by name.
func FindPresetCity(name string) (PresetCity, bool) {
	for _, c := range PresetCities {
		if c.CityName == name {
			return c, true
		}
	}
	return PresetCity{}, false
}
