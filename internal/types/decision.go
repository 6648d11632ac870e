package types

import "time"

// WeatherDecision is the tri-state outcome of a decision-engine run. It is
// produced fresh on every invocation and never persisted directly; only its
// consequences (schedule record, status snapshot, failure counter) are.
type WeatherDecision interface {
	isWeatherDecision()
}

// RainExpected means the window's maximum precipitation probability reached
// the user's threshold and a notification should be armed.
type RainExpected struct {
	MaxPoP           int
	Location         Location
	NotificationTime TimeOfDay
	PrecipType       PrecipitationType
	FetchedAt        time.Time
	// Stale marks a verdict computed from cached data served past its TTL
	// because a fresh fetch failed.
	Stale bool
}

// NoRain means the threshold was not reached and any armed notification
// should be cancelled.
type NoRain struct {
	MaxPoP    int
	Threshold int
	Location  Location
	FetchedAt time.Time
	Stale     bool
}

// DecisionError means the pipeline could not produce a verdict. Kind is one
// of the location/fetch error codes.
type DecisionError struct {
	Kind    ErrorCode
	Message string
}

func (RainExpected) isWeatherDecision()  {}
func (NoRain) isWeatherDecision()        {}
func (DecisionError) isWeatherDecision() {}
