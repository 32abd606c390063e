package noaa

import (
	"context"
	"fmt"
	"time"

	"github.com/spencer-p/tidewatch/pkg/cache"
	"github.com/spencer-p/tidewatch/pkg/tides"
	"github.com/spencer-p/tidewatch/pkg/timetricks"
)

// LevelFetcher is anything that can produce levels for a station and window.
type LevelFetcher interface {
	FetchLevels(ctx context.Context, stationID string, from, to time.Time) ([]tides.WaterLevel, error)
}

// Cached memoizes a LevelFetcher per station and day range. Failures are
// never cached.
type Cached struct {
	next  LevelFetcher
	cache *cache.Timed[[]tides.WaterLevel]
}

func NewCached(next LevelFetcher, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.NewTimed[[]tides.WaterLevel](ttl),
	}
}

func (c *Cached) FetchLevels(ctx context.Context, stationID string, from, to time.Time) ([]tides.WaterLevel, error) {
	// NOAA answers in whole days, so days are the natural key.
	key := fmt.Sprintf("%s %s-%s", stationID,
		timetricks.UniqueDay(from.UTC()),
		timetricks.UniqueDay(to.UTC()))

	if levels, ok := c.cache.Get(key); ok {
		return copyLevels(levels), nil
	}

	levels, err := c.next.FetchLevels(ctx, stationID, from, to)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, copyLevels(levels))
	return levels, nil
}

func copyLevels(levels []tides.WaterLevel) []tides.WaterLevel {
	out := make([]tides.WaterLevel, len(levels))
	copy(out, levels)
	return out
}
