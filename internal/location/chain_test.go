package location

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umbrella/internal/types"
)

type fakeProvider struct {
	permission bool
	loc        types.Location
	err        error
	waitForCtx bool
}

func (p *fakeProvider) HasPermission(context.Context) bool { return p.permission }

func (p *fakeProvider) CurrentPosition(ctx context.Context) (types.Location, error) {
	if p.waitForCtx {
		<-ctx.Done()
		return types.Location{}, ctx.Err()
	}
	if p.err != nil {
		return types.Location{}, p.err
	}
	return p.loc, nil
}

type fakeLocationCache struct {
	loc    types.Location
	stored bool
	saved  []types.Location
}

func (c *fakeLocationCache) Get(context.Context) (types.Location, bool, error) {
	return c.loc, c.stored, nil
}

func (c *fakeLocationCache) Save(_ context.Context, loc types.Location) error {
	c.saved = append(c.saved, loc)
	return nil
}

type fakeGeocoder struct {
	name string
	err  error
}

func (g *fakeGeocoder) PlaceName(context.Context, float64, float64) (string, error) {
	return g.name, g.err
}

func manualSettings() types.UserSettings {
	s := types.DefaultSettings()
	s.ManualLocation = &types.ManualLocation{CityName: "Busan", Latitude: 35.1796, Longitude: 129.0756}
	return s
}

func TestResolve_FreshFixWinsAndIsCached(t *testing.T) {
	provider := &fakeProvider{
		permission: true,
		loc:        types.Location{Latitude: 37.5665, Longitude: 126.9780},
	}
	cache := &fakeLocationCache{}
	chain := NewChain(provider, cache, time.Second, nil)

	loc, err := chain.Resolve(context.Background(), manualSettings())
	require.NoError(t, err)
	assert.Equal(t, types.SourceGPS, loc.Source)
	require.Len(t, cache.saved, 1, "fresh fix must be cached")
}

func TestResolve_FreshFixIsReverseGeocoded(t *testing.T) {
	provider := &fakeProvider{
		permission: true,
		loc:        types.Location{Latitude: 37.5665, Longitude: 126.9780},
	}
	cache := &fakeLocationCache{}
	chain := NewChain(provider, cache, time.Second, nil, WithGeocoder(&fakeGeocoder{name: "Seoul"}))

	loc, err := chain.Resolve(context.Background(), manualSettings())
	require.NoError(t, err)
	assert.Equal(t, "Seoul", loc.Name)
	require.Len(t, cache.saved, 1)
	assert.Equal(t, "Seoul", cache.saved[0].Name, "cached fix must carry the resolved name")
}

func TestResolve_GeocoderFailureKeepsFix(t *testing.T) {
	provider := &fakeProvider{
		permission: true,
		loc:        types.Location{Latitude: 37.5665, Longitude: 126.9780},
	}
	gerr := types.NewAppError(types.ErrCodeUpstreamUnavailable, "geocoder down", nil)
	chain := NewChain(provider, &fakeLocationCache{}, time.Second, nil, WithGeocoder(&fakeGeocoder{err: gerr}))

	loc, err := chain.Resolve(context.Background(), manualSettings())
	require.NoError(t, err, "a dead geocoder must not fail resolution")
	assert.Equal(t, types.SourceGPS, loc.Source)
	assert.Empty(t, loc.Name)
}

func TestResolve_TimeoutFallsBackToCache(t *testing.T) {
	provider := &fakeProvider{permission: true, waitForCtx: true}
	cache := &fakeLocationCache{
		loc:    types.Location{Latitude: 37.5, Longitude: 127.0, Source: types.SourceCached},
		stored: true,
	}
	chain := NewChain(provider, cache, 10*time.Millisecond, nil)

	loc, err := chain.Resolve(context.Background(), manualSettings())
	require.NoError(t, err)
	assert.Equal(t, types.SourceCached, loc.Source)
}

func TestResolve_EmptyCacheFallsBackToManual(t *testing.T) {
	provider := &fakeProvider{
		permission: true,
		err:        types.NewAppError(types.ErrCodeLocationManual, "no fix", nil),
	}
	chain := NewChain(provider, &fakeLocationCache{}, time.Second, nil)

	loc, err := chain.Resolve(context.Background(), manualSettings())
	require.NoError(t, err)
	assert.Equal(t, types.SourceManual, loc.Source)
	assert.Equal(t, "Busan", loc.Name)
}

func TestResolve_NoPermissionNoFallbacks(t *testing.T) {
	provider := &fakeProvider{permission: false}
	chain := NewChain(provider, &fakeLocationCache{}, time.Second, nil)

	_, err := chain.Resolve(context.Background(), types.DefaultSettings())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeLocationPermission, types.CodeOf(err))
}

func TestResolve_PermissionButNothingAvailable(t *testing.T) {
	provider := &fakeProvider{
		permission: true,
		err:        types.NewAppError(types.ErrCodeLocationManual, "no fix", nil),
	}
	chain := NewChain(provider, &fakeLocationCache{}, time.Second, nil)

	_, err := chain.Resolve(context.Background(), types.DefaultSettings())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeLocationManual, types.CodeOf(err))
}

func TestResolve_NoPermissionUsesManualWithoutWaiting(t *testing.T) {
	chain := NewChain(None{}, &fakeLocationCache{}, time.Second, nil)

	loc, err := chain.Resolve(context.Background(), manualSettings())
	require.NoError(t, err)
	assert.Equal(t, types.SourceManual, loc.Source)
}
