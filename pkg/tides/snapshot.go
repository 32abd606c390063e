package tides

import (
	"time"
)

// Snapshot is one station's classified levels and their average. It is the
// unit of persistence and of transfer between devices, and is always replaced
// whole.
type Snapshot struct {
	Station Station      `json:"station"`
	Levels  []WaterLevel `json:"levels"`
	Average float64      `json:"average"`
	// Updated is when Levels were last fetched. Zero if never.
	Updated time.Time `json:"updated"`
}

// NewSnapshot is an empty snapshot for a station.
func NewSnapshot(station Station) Snapshot {
	return Snapshot{Station: station}
}

// WithLevels returns a copy of s holding levels classified, stamped with the
// fetch time.
func (s Snapshot) WithLevels(levels []WaterLevel, fetched time.Time) Snapshot {
	classified, avg := Classify(levels)
	return Snapshot{
		Station: s.Station,
		Levels:  classified,
		Average: avg,
		Updated: fetched,
	}
}

// Clone copies the snapshot so the level slice is not shared.
func (s Snapshot) Clone() Snapshot {
	c := s
	if s.Levels != nil {
		c.Levels = make([]WaterLevel, len(s.Levels))
		copy(c.Levels, s.Levels)
	}
	return c
}

// Empty is true when there are no levels.
func (s Snapshot) Empty() bool {
	return len(s.Levels) == 0
}

// Current is the first level not before now, or nil when every level is in
// the past.
func (s Snapshot) Current(now time.Time) *WaterLevel {
	for i := range s.Levels {
		if !s.Levels[i].Time.Before(now) {
			l := s.Levels[i]
			return &l
		}
	}
	return nil
}

// First is the earliest level.
func (s Snapshot) First() (WaterLevel, bool) {
	if s.Empty() {
		return WaterLevel{}, false
	}
	return s.Levels[0], true
}

// Latest is the most recent level.
func (s Snapshot) Latest() (WaterLevel, bool) {
	if s.Empty() {
		return WaterLevel{}, false
	}
	return s.Levels[len(s.Levels)-1], true
}
