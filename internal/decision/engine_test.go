package decision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umbrella/internal/types"
	"umbrella/internal/weather"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeSettings struct {
	settings types.UserSettings
	err      error
}

func (f fakeSettings) Get(context.Context) (types.UserSettings, error) {
	return f.settings, f.err
}

type fakeResolver struct {
	loc types.Location
	err error
}

func (f fakeResolver) Resolve(context.Context, types.UserSettings) (types.Location, error) {
	return f.loc, f.err
}

type fakeForecasts struct {
	result     weather.Result
	err        error
	gotDate    time.Time
	gotRefresh bool
}

func (f *fakeForecasts) GetForecast(_ context.Context, _ types.Location, targetDate time.Time, forceRefresh bool) (weather.Result, error) {
	f.gotDate = targetDate
	f.gotRefresh = forceRefresh
	return f.result, f.err
}

func tzSeoul(t *testing.T) *time.Location {
	t.Helper()
	tz, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	return tz
}

func forecastWithHours(tz *time.Location, pops map[int]int, codes map[int]int) types.DailyForecast {
	f := types.DailyForecast{
		Date:      time.Date(2024, 1, 16, 0, 0, 0, 0, tz),
		FetchedAt: time.Date(2024, 1, 16, 5, 0, 0, 0, tz),
	}
	for h := 0; h < 24; h++ {
		hf := types.HourlyForecast{Time: time.Date(2024, 1, 16, h, 0, 0, 0, tz)}
		if p, ok := pops[h]; ok {
			hf.PoP = p
		}
		if c, ok := codes[h]; ok {
			code := c
			hf.WeatherCode = &code
		}
		f.Hours = append(f.Hours, hf)
	}
	return f
}

func newTestEngine(t *testing.T, settings fakeSettings, resolver fakeResolver, forecasts *fakeForecasts, now time.Time) *Engine {
	t.Helper()
	return NewEngine(settings, resolver, forecasts, fixedClock{now: now}, tzSeoul(t), nil)
}

var engineLoc = types.Location{Latitude: 37.5665, Longitude: 126.9780, Name: "Seoul", Source: types.SourceManual}

func TestDecide_RainAtThresholdIsInclusive(t *testing.T) {
	tz := tzSeoul(t)
	now := time.Date(2024, 1, 16, 5, 0, 0, 0, tz) // before 07:30, target is today

	// Max in window [5, 9) is exactly the default threshold of 40.
	forecasts := &fakeForecasts{result: weather.Result{
		Forecast: forecastWithHours(tz, map[int]int{6: 40, 7: 25}, map[int]int{6: 61}),
	}}
	engine := newTestEngine(t, fakeSettings{settings: types.DefaultSettings()}, fakeResolver{loc: engineLoc}, forecasts, now)

	verdict, settings := engine.Decide(context.Background(), false)
	rain, ok := verdict.(types.RainExpected)
	require.True(t, ok, "verdict = %#v, want RainExpected", verdict)
	assert.Equal(t, 40, rain.MaxPoP)
	assert.Equal(t, types.PrecipRain, rain.PrecipType)
	assert.Equal(t, types.DefaultSettings().NotificationTime, rain.NotificationTime)
	assert.Equal(t, 40, settings.PoPThreshold)
}

func TestDecide_BelowThresholdIsNoRain(t *testing.T) {
	tz := tzSeoul(t)
	now := time.Date(2024, 1, 16, 5, 0, 0, 0, tz)

	forecasts := &fakeForecasts{result: weather.Result{
		Forecast: forecastWithHours(tz, map[int]int{6: 39}, nil),
	}}
	engine := newTestEngine(t, fakeSettings{settings: types.DefaultSettings()}, fakeResolver{loc: engineLoc}, forecasts, now)

	verdict, _ := engine.Decide(context.Background(), false)
	noRain, ok := verdict.(types.NoRain)
	require.True(t, ok, "verdict = %#v, want NoRain", verdict)
	assert.Equal(t, 39, noRain.MaxPoP)
	assert.Equal(t, 40, noRain.Threshold)
}

func TestDecide_HourOutsideWindowIgnored(t *testing.T) {
	tz := tzSeoul(t)
	now := time.Date(2024, 1, 16, 5, 0, 0, 0, tz)

	// 07:30 notification gives window [5, 9); hour 9 is excluded by the
	// half-open upper bound.
	forecasts := &fakeForecasts{result: weather.Result{
		Forecast: forecastWithHours(tz, map[int]int{9: 95}, nil),
	}}
	engine := newTestEngine(t, fakeSettings{settings: types.DefaultSettings()}, fakeResolver{loc: engineLoc}, forecasts, now)

	verdict, _ := engine.Decide(context.Background(), false)
	_, ok := verdict.(types.NoRain)
	require.True(t, ok, "hour at the window's upper bound must not count")
}

func TestDecide_TargetDateRollsToTomorrowAfterNotificationTime(t *testing.T) {
	tz := tzSeoul(t)
	now := time.Date(2024, 1, 16, 8, 0, 0, 0, tz) // past 07:30

	forecasts := &fakeForecasts{result: weather.Result{
		Forecast: forecastWithHours(tz, nil, nil),
	}}
	engine := newTestEngine(t, fakeSettings{settings: types.DefaultSettings()}, fakeResolver{loc: engineLoc}, forecasts, now)

	engine.Decide(context.Background(), false)
	assert.Equal(t, "2024-01-17", types.DateString(forecasts.gotDate, tz))
}

func TestDecide_LocationFailureShortCircuits(t *testing.T) {
	tz := tzSeoul(t)
	now := time.Date(2024, 1, 16, 5, 0, 0, 0, tz)

	forecasts := &fakeForecasts{}
	engine := newTestEngine(t,
		fakeSettings{settings: types.DefaultSettings()},
		fakeResolver{err: types.NewAppError(types.ErrCodeLocationPermission, "denied", nil)},
		forecasts, now)

	verdict, _ := engine.Decide(context.Background(), false)
	decErr, ok := verdict.(types.DecisionError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeLocationPermission, decErr.Kind)
	assert.True(t, forecasts.gotDate.IsZero(), "forecast must not be fetched without a location")
}

func TestDecide_FetchFailureBecomesDecisionError(t *testing.T) {
	tz := tzSeoul(t)
	now := time.Date(2024, 1, 16, 5, 0, 0, 0, tz)

	forecasts := &fakeForecasts{err: types.NewAppError(types.ErrCodeFetchNetwork, "unreachable", nil)}
	engine := newTestEngine(t, fakeSettings{settings: types.DefaultSettings()}, fakeResolver{loc: engineLoc}, forecasts, now)

	verdict, _ := engine.Decide(context.Background(), false)
	decErr, ok := verdict.(types.DecisionError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeFetchNetwork, decErr.Kind)
}

func TestDecide_StaleCacheMarksVerdict(t *testing.T) {
	tz := tzSeoul(t)
	now := time.Date(2024, 1, 16, 5, 0, 0, 0, tz)

	forecasts := &fakeForecasts{result: weather.Result{
		Forecast:  forecastWithHours(tz, map[int]int{6: 70}, nil),
		FromCache: true,
		Warning:   "forecast data may be outdated",
	}}
	engine := newTestEngine(t, fakeSettings{settings: types.DefaultSettings()}, fakeResolver{loc: engineLoc}, forecasts, now)

	verdict, _ := engine.Decide(context.Background(), false)
	rain, ok := verdict.(types.RainExpected)
	require.True(t, ok)
	assert.True(t, rain.Stale)
}

func TestDecide_MixedCodesClassifyMixed(t *testing.T) {
	tz := tzSeoul(t)
	now := time.Date(2024, 1, 16, 5, 0, 0, 0, tz)

	// Rain at hour 6 and snow at hour 7 inside the window.
	forecasts := &fakeForecasts{result: weather.Result{
		Forecast: forecastWithHours(tz, map[int]int{6: 70, 7: 60}, map[int]int{6: 61, 7: 71}),
	}}
	engine := newTestEngine(t, fakeSettings{settings: types.DefaultSettings()}, fakeResolver{loc: engineLoc}, forecasts, now)

	verdict, _ := engine.Decide(context.Background(), false)
	rain, ok := verdict.(types.RainExpected)
	require.True(t, ok)
	assert.Equal(t, types.PrecipMixed, rain.PrecipType)
}
