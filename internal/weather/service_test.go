package weather

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umbrella/internal/db"
	"umbrella/internal/types"
)

// fakeClock returns a fixed instant.
type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

// fakeFetcher returns a canned response or error and counts calls.
type fakeFetcher struct {
	resp  *ForecastResponse
	err   error
	calls int
}

func (f *fakeFetcher) FetchHourly(ctx context.Context, loc types.Location) (*ForecastResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// fakeCache is an in-memory Cache holding raw payloads.
type fakeCache struct {
	payloads  map[string][]byte
	fetchedAt map[string]time.Time
	putErr    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{payloads: map[string][]byte{}, fetchedAt: map[string]time.Time{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	if p, ok := c.payloads[key]; ok {
		return p, c.fetchedAt[key], nil
	}
	return nil, time.Time{}, types.NewAppError(types.ErrCodeFetchUnknown, "no cached forecast", nil)
}

func (c *fakeCache) Put(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	if c.putErr != nil {
		return c.putErr
	}
	c.payloads[key] = payload
	c.fetchedAt[key] = fetchedAt
	return nil
}

func (c *fakeCache) seed(t *testing.T, key string, resp *ForecastResponse, fetchedAt time.Time) {
	t.Helper()
	payload, err := json.Marshal(resp)
	require.NoError(t, err)
	c.payloads[key] = payload
	c.fetchedAt[key] = fetchedAt
}

func testResponse(hour string, pop int) *ForecastResponse {
	resp := &ForecastResponse{}
	resp.Hourly.Time = []string{hour}
	resp.Hourly.PrecipitationProbability = []*int{&pop}
	return resp
}

// twoDayResponse spans two calendar days, as a forecast_days=2 fetch does.
func twoDayResponse(day1Hour string, day1PoP int, day2Hour string, day2PoP int) *ForecastResponse {
	resp := &ForecastResponse{}
	resp.Hourly.Time = []string{day1Hour, day2Hour}
	resp.Hourly.PrecipitationProbability = []*int{&day1PoP, &day2PoP}
	return resp
}

var testLoc = types.Location{Latitude: 37.5665, Longitude: 126.9780, Source: types.SourceManual}

func newTestService(fetcher Fetcher, cache Cache, now time.Time, tz *time.Location) *Service {
	return NewService(fetcher, cache, fakeClock{now: now}, tz, 6*time.Hour, nil)
}

func TestGetForecast_FreshCacheSkipsFetch(t *testing.T) {
	tz := seoulTZ(t)
	now := time.Date(2024, 1, 16, 6, 0, 0, 0, tz)
	target := time.Date(2024, 1, 16, 0, 0, 0, 0, tz)

	fetcher := &fakeFetcher{resp: testResponse("2024-01-16T07:00", 70)}
	cache := newFakeCache()
	svc := newTestService(fetcher, cache, now, tz)

	// Entry fetched 5h59m ago is still within the 6h TTL.
	cache.seed(t, db.CacheKey(testLoc), testResponse("2024-01-16T07:00", 60),
		now.Add(-(5*time.Hour + 59*time.Minute)))

	res, err := svc.GetForecast(context.Background(), testLoc, target, false)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 359, res.AgeMinutes)
	assert.Empty(t, res.Warning)
	assert.Equal(t, 0, fetcher.calls, "fresh cache must not trigger a fetch")
	require.Len(t, res.Forecast.Hours, 1)
	assert.Equal(t, 60, res.Forecast.Hours[0].PoP)
}

func TestGetForecast_CachedFetchCoversBothTargetDates(t *testing.T) {
	tz := seoulTZ(t)
	now := time.Date(2024, 1, 16, 6, 0, 0, 0, tz)
	today := time.Date(2024, 1, 16, 0, 0, 0, 0, tz)
	tomorrow := today.AddDate(0, 0, 1)

	fetcher := &fakeFetcher{resp: twoDayResponse("2024-01-16T07:00", 70, "2024-01-17T07:00", 30)}
	cache := newFakeCache()
	svc := newTestService(fetcher, cache, now, tz)

	// First pass fetches and caches the raw two-day response.
	res, err := svc.GetForecast(context.Background(), testLoc, today, false)
	require.NoError(t, err)
	require.Len(t, res.Forecast.Hours, 1)
	assert.Equal(t, 70, res.Forecast.Hours[0].PoP)

	// A pass for the next calendar date reuses the same entry: no refetch.
	res, err = svc.GetForecast(context.Background(), testLoc, tomorrow, false)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 1, fetcher.calls, "second target date must be served from the raw cache")
	require.Len(t, res.Forecast.Hours, 1)
	assert.Equal(t, 30, res.Forecast.Hours[0].PoP)
}

func TestGetForecast_ExpiredCacheRefetches(t *testing.T) {
	tz := seoulTZ(t)
	now := time.Date(2024, 1, 16, 6, 0, 0, 0, tz)
	target := time.Date(2024, 1, 16, 0, 0, 0, 0, tz)

	fetcher := &fakeFetcher{resp: testResponse("2024-01-16T07:00", 70)}
	cache := newFakeCache()
	svc := newTestService(fetcher, cache, now, tz)

	// 6h01m old: just past the TTL.
	cache.seed(t, db.CacheKey(testLoc), testResponse("2024-01-16T07:00", 10),
		now.Add(-(6*time.Hour + time.Minute)))

	res, err := svc.GetForecast(context.Background(), testLoc, target, false)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 1, fetcher.calls)
	require.Len(t, res.Forecast.Hours, 1)
	assert.Equal(t, 70, res.Forecast.Hours[0].PoP)
}

func TestGetForecast_ForceRefreshBypassesFreshCache(t *testing.T) {
	tz := seoulTZ(t)
	now := time.Date(2024, 1, 16, 6, 0, 0, 0, tz)
	target := time.Date(2024, 1, 16, 0, 0, 0, 0, tz)

	fetcher := &fakeFetcher{resp: testResponse("2024-01-16T07:00", 55)}
	cache := newFakeCache()
	svc := newTestService(fetcher, cache, now, tz)

	cache.seed(t, db.CacheKey(testLoc), testResponse("2024-01-16T07:00", 60), now.Add(-time.Minute))

	res, err := svc.GetForecast(context.Background(), testLoc, target, true)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 1, fetcher.calls)
}

func TestGetForecast_StaleFallbackOnFetchFailure(t *testing.T) {
	tz := seoulTZ(t)
	now := time.Date(2024, 1, 16, 6, 0, 0, 0, tz)
	target := time.Date(2024, 1, 16, 0, 0, 0, 0, tz)

	fetcher := &fakeFetcher{err: types.NewAppError(types.ErrCodeFetchNetwork, "connection refused", nil)}
	cache := newFakeCache()
	svc := newTestService(fetcher, cache, now, tz)

	// 8h old: past the TTL, but better than nothing when the fetch fails.
	cache.seed(t, db.CacheKey(testLoc), testResponse("2024-01-16T07:00", 70), now.Add(-8*time.Hour))

	res, err := svc.GetForecast(context.Background(), testLoc, target, false)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, 480, res.AgeMinutes)
}

func TestGetForecast_StaleFallbackServesNewTargetDate(t *testing.T) {
	tz := seoulTZ(t)
	now := time.Date(2024, 1, 16, 8, 0, 0, 0, tz)
	tomorrow := time.Date(2024, 1, 17, 0, 0, 0, 0, tz)

	fetcher := &fakeFetcher{err: types.NewAppError(types.ErrCodeFetchNetwork, "connection refused", nil)}
	cache := newFakeCache()
	svc := newTestService(fetcher, cache, now, tz)

	// The entry predates the cutoff flip to tomorrow; the raw payload
	// still covers the new target date.
	cache.seed(t, db.CacheKey(testLoc), twoDayResponse("2024-01-16T07:00", 70, "2024-01-17T07:00", 40),
		now.Add(-7*time.Hour))

	res, err := svc.GetForecast(context.Background(), testLoc, tomorrow, false)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.NotEmpty(t, res.Warning)
	require.Len(t, res.Forecast.Hours, 1)
	assert.Equal(t, 40, res.Forecast.Hours[0].PoP)
}

func TestGetForecast_FetchFailureWithEmptyCachePropagates(t *testing.T) {
	tz := seoulTZ(t)
	now := time.Date(2024, 1, 16, 6, 0, 0, 0, tz)
	target := time.Date(2024, 1, 16, 0, 0, 0, 0, tz)

	fetcher := &fakeFetcher{err: types.NewAppError(types.ErrCodeFetchNetwork, "connection refused", nil)}
	svc := newTestService(fetcher, newFakeCache(), now, tz)

	_, err := svc.GetForecast(context.Background(), testLoc, target, false)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeFetchNetwork, types.CodeOf(err))
}

func TestGetForecast_CacheWriteFailureDoesNotFailLookup(t *testing.T) {
	tz := seoulTZ(t)
	now := time.Date(2024, 1, 16, 6, 0, 0, 0, tz)
	target := time.Date(2024, 1, 16, 0, 0, 0, 0, tz)

	fetcher := &fakeFetcher{resp: testResponse("2024-01-16T07:00", 70)}
	cache := newFakeCache()
	cache.putErr = types.NewAppError(types.ErrCodeInternalDB, "disk full", nil)
	svc := newTestService(fetcher, cache, now, tz)

	res, err := svc.GetForecast(context.Background(), testLoc, target, false)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
}
