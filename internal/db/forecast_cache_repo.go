package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"umbrella/internal/types"
)

// ForecastCacheRepository stores the raw fetched forecast payload as
// gzip-compressed bytes, keyed by rounded coordinates. One entry per
// location holds the full multi-day response; callers map it to whichever
// target date they need and judge staleness against the stored fetch
// instant.
type ForecastCacheRepository struct {
	db DBTX
}

// NewForecastCacheRepository creates a ForecastCacheRepository backed by the
// given database connection (pool or transaction).
func NewForecastCacheRepository(db DBTX) *ForecastCacheRepository {
	return &ForecastCacheRepository{db: db}
}

// CacheKey builds the cache key from a location. Coordinates are rounded to
// two decimals (roughly 1 km) so GPS jitter does not fragment the cache.
func CacheKey(loc types.Location) string {
	return fmt.Sprintf("%.2f:%.2f", loc.Latitude, loc.Longitude)
}

// Put compresses and upserts the raw payload for a key.
func (r *ForecastCacheRepository) Put(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	compressed, err := compressPayload(payload)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO forecast_cache (cache_key, payload, fetched_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (cache_key) DO UPDATE SET
		   payload = EXCLUDED.payload,
		   fetched_at = EXCLUDED.fetched_at`,
		key,
		compressed,
		fetchedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store forecast cache entry", err)
	}
	return nil
}

// Get returns the raw payload and fetch instant for a key. Missing and
// unreadable entries both surface as a fetch error so callers fall through
// to a fresh fetch.
func (r *ForecastCacheRepository) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	var (
		compressed []byte
		fetchedAt  time.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT payload, fetched_at FROM forecast_cache WHERE cache_key = $1`,
		key,
	).Scan(&compressed, &fetchedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, time.Time{}, types.NewAppError(types.ErrCodeFetchUnknown, "no cached forecast", nil)
		}
		return nil, time.Time{}, types.NewAppError(types.ErrCodeInternalDB, "failed to read forecast cache entry", err)
	}

	payload, err := decompressPayload(compressed)
	if err != nil {
		// A corrupt entry behaves like a miss.
		return nil, time.Time{}, types.NewAppError(types.ErrCodeFetchUnknown, "corrupt cached forecast", err)
	}
	return payload, fetchedAt, nil
}

// Prune removes entries fetched before the cutoff.
func (r *ForecastCacheRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM forecast_cache WHERE fetched_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune forecast cache", err)
	}
	return tag.RowsAffected(), nil
}

func compressPayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to compress forecast", err)
	}
	if err := zw.Close(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to compress forecast", err)
	}
	return buf.Bytes(), nil
}

func decompressPayload(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
