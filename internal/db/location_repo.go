package db

import (
	"context"

	"umbrella/internal/types"
)

// LocationRepository persists the last successfully resolved position, used
// as the middle step of the location fallback chain when a fresh fix is
// unavailable.
type LocationRepository struct {
	db DBTX
}

// NewLocationRepository creates a LocationRepository backed by the given
// database connection (pool or transaction).
func NewLocationRepository(db DBTX) *LocationRepository {
	return &LocationRepository{db: db}
}

// Save upserts the cached position.
func (r *LocationRepository) Save(ctx context.Context, loc types.Location) error {
	var name *string
	if loc.Name != "" {
		name = &loc.Name
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO location_cache (id, latitude, longitude, name, source, updated_at)
		 VALUES (1, $1, $2, $3, $4, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   latitude = EXCLUDED.latitude,
		   longitude = EXCLUDED.longitude,
		   name = EXCLUDED.name,
		   source = EXCLUDED.source,
		   updated_at = NOW()`,
		loc.Latitude,
		loc.Longitude,
		name,
		string(loc.Source),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save cached location", err)
	}
	return nil
}

// Get returns the cached position. Absence is signaled by the second
// return value rather than an error: an empty cache is the normal state on
// a fresh install.
func (r *LocationRepository) Get(ctx context.Context) (types.Location, bool, error) {
	var (
		loc  types.Location
		name *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT latitude, longitude, name FROM location_cache WHERE id = 1`,
	).Scan(&loc.Latitude, &loc.Longitude, &name)
	if err != nil {
		if isNoRows(err) {
			return types.Location{}, false, nil
		}
		return types.Location{}, false, types.NewAppError(types.ErrCodeInternalDB, "failed to read cached location", err)
	}
	if name != nil {
		loc.Name = *name
	}
	// The source always reads as cached regardless of how the position was
	// originally obtained.
	loc.Source = types.SourceCached
	return loc, true, nil
}
