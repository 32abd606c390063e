package timeline

import (
	"fmt"
	"time"

	"github.com/spencer-p/tidewatch/pkg/sunset"
	"github.com/spencer-p/tidewatch/pkg/tides"
)

// Entry is one rendered point on the timeline.
type Entry struct {
	Time      time.Time       `json:"time"`
	Height    float64         `json:"height"`
	Situation tides.Situation `json:"situation"`
	// ShortText is e.g. "+2.6m".
	ShortText string `json:"short"`
	// LongText is e.g. "Rising, +2.6m".
	LongText string `json:"long"`
	// Group names the animation group: entries with the same situation
	// transition together.
	Group    string `json:"group"`
	Daylight bool   `json:"daylight"`
}

func NewEntry(l tides.WaterLevel, place sunset.Place) Entry {
	short := fmt.Sprintf("%+.1fm", l.Height)
	return Entry{
		Time:      l.Time,
		Height:    l.Height,
		Situation: l.Situation,
		ShortText: short,
		LongText:  fmt.Sprintf("%s, %s", l.Situation, short),
		Group:     l.Situation.String(),
		Daylight:  sunset.Daylight(l.Time, place),
	}
}

func entries(s tides.Snapshot) []Entry {
	if s.Empty() {
		return nil
	}
	place := sunset.At(s.Station)
	out := make([]Entry, len(s.Levels))
	for i, l := range s.Levels {
		out[i] = NewEntry(l, place)
	}
	return out
}

// After keeps the entries strictly after t, in order.
func After(es []Entry, t time.Time) []Entry {
	for i, e := range es {
		if e.Time.After(t) {
			return es[i:]
		}
	}
	return nil
}
