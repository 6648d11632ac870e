package weather

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"umbrella/internal/db"
	"umbrella/internal/types"
)

// Fetcher retrieves a raw forecast for a coordinate.
type Fetcher interface {
	FetchHourly(ctx context.Context, loc types.Location) (*ForecastResponse, error)
}

// Cache stores raw forecast payloads keyed by location.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, time.Time, error)
	Put(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error
}

// Result is a forecast lookup outcome. Warning is non-empty when stale
// cached data was served because a fresh fetch failed.
type Result struct {
	Forecast   types.DailyForecast
	FromCache  bool
	AgeMinutes int
	Warning    string
}

// Service serves forecasts with a freshness-bounded cache in front of the
// API client. The cache holds the raw multi-day response, so one fetch
// covers every target date the response spans; cached data younger than
// the TTL short-circuits the fetch, and on fetch failure stale cached data
// of any age is served with a warning rather than failing the whole
// decision pass.
type Service struct {
	fetcher Fetcher
	cache   Cache
	clock   types.Clock
	tz      *time.Location
	ttl     time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

// NewService creates a forecast service. A nil logger defaults to
// slog.Default().
func NewService(fetcher Fetcher, cache Cache, clock types.Clock, tz *time.Location, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		clock:   clock,
		tz:      tz,
		ttl:     ttl,
		logger:  logger,
	}
}

// GetForecast returns the forecast for the target calendar date at the
// given location. forceRefresh bypasses the freshness check but still
// falls back to stale cache when the fetch fails. Concurrent lookups for
// the same location are collapsed into a single upstream fetch.
func (s *Service) GetForecast(ctx context.Context, loc types.Location, targetDate time.Time, forceRefresh bool) (Result, error) {
	key := db.CacheKey(loc)
	now := s.clock.Now()

	if !forceRefresh {
		if resp, fetchedAt, err := s.cachedResponse(ctx, key); err == nil {
			age := now.Sub(fetchedAt)
			if age <= s.ttl {
				return Result{
					Forecast:   MapToForecast(resp, targetDate, s.tz, fetchedAt),
					FromCache:  true,
					AgeMinutes: int(age.Minutes()),
				}, nil
			}
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.fetchAndStore(ctx, loc, key)
	})
	if err == nil {
		return Result{Forecast: MapToForecast(v.(*ForecastResponse), targetDate, s.tz, now)}, nil
	}

	// Fresh fetch failed: serve stale cache with a warning if anything is
	// stored at all.
	if resp, fetchedAt, cacheErr := s.cachedResponse(ctx, key); cacheErr == nil {
		age := now.Sub(fetchedAt)
		s.logger.WarnContext(ctx, "serving stale forecast after fetch failure",
			"key", key,
			"age_minutes", int(age.Minutes()),
			"error", err,
		)
		return Result{
			Forecast:   MapToForecast(resp, targetDate, s.tz, fetchedAt),
			FromCache:  true,
			AgeMinutes: int(age.Minutes()),
			Warning:    "forecast data may be outdated",
		}, nil
	}

	return Result{}, err
}

func (s *Service) cachedResponse(ctx context.Context, key string) (*ForecastResponse, time.Time, error) {
	payload, fetchedAt, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, time.Time{}, err
	}
	var resp ForecastResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, time.Time{}, types.NewAppError(types.ErrCodeFetchUnknown, "corrupt cached forecast", err)
	}
	return &resp, fetchedAt, nil
}

func (s *Service) fetchAndStore(ctx context.Context, loc types.Location, key string) (*ForecastResponse, error) {
	resp, err := s.fetcher.FetchHourly(ctx, loc)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode forecast for caching", "key", key, "error", err)
		return resp, nil
	}
	if err := s.cache.Put(ctx, key, payload, s.clock.Now()); err != nil {
		// A cache write failure must not fail the lookup.
		s.logger.WarnContext(ctx, "failed to store forecast cache entry", "key", key, "error", err)
	}
	return resp, nil
}
