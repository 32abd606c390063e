package noaa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spencer-p/tidewatch/pkg/tides"
)

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) FetchLevels(ctx context.Context, stationID string, from, to time.Time) ([]tides.WaterLevel, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []tides.WaterLevel{{Time: from, Height: 1}}, nil
}

func TestCached(t *testing.T) {
	next := &countingFetcher{}
	c := NewCached(next, time.Hour)
	ctx := context.Background()
	from := time.Date(2016, time.March, 13, 12, 0, 0, 0, time.UTC)
	to := from.Add(48 * time.Hour)

	c.FetchLevels(ctx, "a", from, to)
	c.FetchLevels(ctx, "a", from.Add(time.Hour), to.Add(time.Hour))
	if next.calls != 1 {
		t.Errorf("same days should hit the cache, got %d calls", next.calls)
	}

	c.FetchLevels(ctx, "b", from, to)
	if next.calls != 2 {
		t.Errorf("other station should miss the cache, got %d calls", next.calls)
	}

	levels, _ := c.FetchLevels(ctx, "a", from, to)
	levels[0].Height = 99
	again, _ := c.FetchLevels(ctx, "a", from, to)
	if again[0].Height != 1 {
		t.Errorf("cached levels were aliased")
	}
}

func TestCachedSkipsErrors(t *testing.T) {
	next := &countingFetcher{err: errors.New("down")}
	c := NewCached(next, time.Hour)
	from := time.Date(2016, time.March, 13, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if _, err := c.FetchLevels(context.Background(), "a", from, from); err == nil {
			t.Fatalf("expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("errors should not be cached, got %d calls", next.calls)
	}
}
