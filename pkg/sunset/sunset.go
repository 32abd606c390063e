package sunset

import (
	"math"
	"time"

	"github.com/keep94/sunrise"

	"github.com/spencer-p/tidewatch/pkg/timetricks"
)

// GetSunEvents returns a list of ordered sun events from the starting time to
// the end time in the given place. The first result will always be a sunrise.
func GetSunEvents(start time.Time, duration time.Duration, place Place) SunEvents {
	start = start.In(place.Location)

	var s sunrise.Sunrise
	s.Around(place.Lat, place.Long, start)

	// The sunrise package is loose about which day Around lands on.
	for i := 0; i < 3 && !timetricks.SameDay(start, s.Sunrise().In(place.Location)); i++ {
		if s.Sunrise().Before(start) {
			s.AddDays(1)
		} else {
			s.AddDays(-1)
		}
	}

	numDays := int(math.Ceil(duration.Hours() / 24))
	ret := make(SunEvents, 0, numDays*2)
	for i := 0; i < numDays; i++ {
		ret = append(ret,
			SunEvent{s.Sunrise().In(place.Location), Sunrise},
			SunEvent{s.Sunset().In(place.Location), Sunset})
		s.AddDays(1)
	}
	return ret
}

// Daylight reports whether the sun is up at t in the given place.
func Daylight(t time.Time, place Place) bool {
	var s sunrise.Sunrise
	s.Around(place.Lat, place.Long, t)
	s.AddDays(-1)
	for i := 0; i < 3; i++ {
		if !t.Before(s.Sunrise()) && t.Before(s.Sunset()) {
			return true
		}
		s.AddDays(1)
	}
	return false
}
