package tides

import (
	"fmt"
	"sort"
	"time"
)

// WaterLevel is one timestamped height prediction.
type WaterLevel struct {
	// Time of the prediction, UTC.
	Time time.Time `json:"time"`
	// Height in meters above MLLW.
	Height float64 `json:"height"`
	// Situation is derived by Classify.
	Situation Situation `json:"situation"`
}

func (w WaterLevel) String() string {
	return fmt.Sprintf("{t: %s, v: %.3f, situation: %s}",
		w.Time.Format(time.RFC822),
		w.Height,
		w.Situation)
}

// Situation is the qualitative phase of the tide at a sample.
type Situation uint

const (
	Unknown Situation = iota
	High
	Low
	Rising
	Falling
)

var situationNames = [...]string{
	Unknown: "Unknown",
	High:    "High",
	Low:     "Low",
	Rising:  "Rising",
	Falling: "Falling",
}

func (s Situation) Valid() bool {
	return s <= Falling
}

func (s Situation) String() string {
	if !s.Valid() {
		return "invalid"
	}
	return situationNames[s]
}

func (s Situation) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid situation %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Situation) UnmarshalText(buf []byte) error {
	for i, name := range situationNames {
		if name == string(buf) {
			*s = Situation(i)
			return nil
		}
	}
	return fmt.Errorf("invalid situation %q", buf)
}

// Normalize sorts levels by time and drops samples that repeat a timestamp,
// keeping the first one seen. The input is not modified.
func Normalize(levels []WaterLevel) []WaterLevel {
	if len(levels) == 0 {
		return nil
	}
	out := make([]WaterLevel, len(levels))
	copy(out, levels)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})

	n := 1
	for i := 1; i < len(out); i++ {
		if out[i].Time.Equal(out[n-1].Time) {
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

// Between returns the levels strictly inside the open interval (from, to).
func Between(levels []WaterLevel, from, to time.Time) []WaterLevel {
	var out []WaterLevel
	for _, l := range levels {
		if l.Time.After(from) && l.Time.Before(to) {
			out = append(out, l)
		}
	}
	return out
}

// sorted reports whether levels are strictly ascending by time.
func sorted(levels []WaterLevel) bool {
	for i := 1; i < len(levels); i++ {
		if !levels[i-1].Time.Before(levels[i].Time) {
			return false
		}
	}
	return true
}
