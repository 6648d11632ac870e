// Package location resolves the coordinate used for forecast lookups. A
// fresh position source is tried first, then the last cached position, then
// the user's manual location; the chain reports which user action would
// unblock it when every step fails.
package location

import (
	"context"
	"log/slog"
	"time"

	"umbrella/internal/types"
)

// Provider supplies device positions. Implementations wrap whatever position
// source the deployment has (a GPS daemon socket, a companion app endpoint);
// None is used when there is no source at all.
type Provider interface {
	// HasPermission reports whether the provider is allowed to read the
	// position at all. A false return skips the fresh-fix step entirely.
	HasPermission(ctx context.Context) bool

	// CurrentPosition blocks until a fresh fix is available or ctx expires.
	CurrentPosition(ctx context.Context) (types.Location, error)
}

// Cache persists the last successfully resolved position.
type Cache interface {
	Get(ctx context.Context) (types.Location, bool, error)
	Save(ctx context.Context, loc types.Location) error
}

// Geocoder resolves a human-readable place name for a coordinate. Used
// best-effort on fresh fixes; a failure never fails the resolution.
type Geocoder interface {
	PlaceName(ctx context.Context, lat, lon float64) (string, error)
}

// None is a Provider for deployments without any position source. It never
// grants permission, pushing the chain straight to cached and manual
// locations.
type None struct{}

func (None) HasPermission(context.Context) bool { return false }

func (None) CurrentPosition(context.Context) (types.Location, error) {
	return types.Location{}, types.NewAppError(types.ErrCodeLocationPermission, "no position source configured", nil)
}

// Chain is the resolution pipeline: fresh fix, cached position, manual
// location, in that order.
type Chain struct {
	provider Provider
	cache    Cache
	geocoder Geocoder
	timeout  time.Duration
	logger   *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithGeocoder attaches a reverse geocoder that names fresh fixes.
func WithGeocoder(g Geocoder) ChainOption {
	return func(c *Chain) { c.geocoder = g }
}

// NewChain creates a Chain. timeout bounds the fresh-fix step; a nil logger
// defaults to slog.Default().
func NewChain(provider Provider, cache Cache, timeout time.Duration, logger *slog.Logger, opts ...ChainOption) *Chain {
	if provider == nil {
		provider = None{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{provider: provider, cache: cache, timeout: timeout, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the best available location for the given settings.
//
// When every step fails, the error distinguishes what would unblock the
// chain: ErrCodeLocationPermission when the position source lacks
// permission (granting it would help), ErrCodeLocationManual when
// permission is granted but no fix, cache, or manual location exists
// (only configuring a manual location can help).
func (c *Chain) Resolve(ctx context.Context, settings types.UserSettings) (types.Location, error) {
	hasPermission := c.provider.HasPermission(ctx)

	if hasPermission {
		fixCtx, cancel := context.WithTimeout(ctx, c.timeout)
		loc, err := c.provider.CurrentPosition(fixCtx)
		cancel()
		if err == nil {
			loc.Source = types.SourceGPS
			if loc.Name == "" && c.geocoder != nil {
				if name, gerr := c.geocoder.PlaceName(ctx, loc.Latitude, loc.Longitude); gerr == nil {
					loc.Name = name
				} else {
					c.logger.InfoContext(ctx, "reverse geocoding failed, keeping unnamed position", "error", gerr)
				}
			}
			if saveErr := c.cache.Save(ctx, loc); saveErr != nil {
				c.logger.WarnContext(ctx, "failed to cache resolved position", "error", saveErr)
			}
			return loc, nil
		}
		c.logger.InfoContext(ctx, "fresh position unavailable, falling back", "error", err)
	}

	if cached, ok, err := c.cache.Get(ctx); err == nil && ok {
		return cached, nil
	} else if err != nil {
		c.logger.WarnContext(ctx, "failed to read cached position", "error", err)
	}

	if settings.ManualLocation != nil {
		m := settings.ManualLocation
		return types.Location{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Name:      m.CityName,
			Source:    types.SourceManual,
		}, nil
	}

	if !hasPermission {
		return types.Location{}, types.NewAppError(types.ErrCodeLocationPermission,
			"position permission missing and no fallback location configured", nil)
	}
	return types.Location{}, types.NewAppError(types.ErrCodeLocationManual,
		"no position fix available and no manual location configured", nil)
}
