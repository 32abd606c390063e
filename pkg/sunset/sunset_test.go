package sunset

import (
	"testing"
	"time"

	"github.com/spencer-p/tidewatch/pkg/tides"
)

var santaCruz = At(tides.DefaultCatalog.Stations[0])

func TestGetSunEvents(t *testing.T) {
	start := time.Date(2020, time.October, 25, 0, 0, 0, 0, santaCruz.Location)
	events := GetSunEvents(start, 5*24*time.Hour, santaCruz)

	if len(events) != 10 {
		t.Fatalf("got %d events, want 10", len(events))
	}
	for i, e := range events {
		want := Sunrise
		if i%2 == 1 {
			want = Sunset
		}
		if e.Event != want {
			t.Errorf("event %d is %s, want %s", i, e.Event, want)
		}
		if i > 0 && !e.Time.After(events[i-1].Time) {
			t.Errorf("event %d at %s is not after %s", i, e.Time, events[i-1].Time)
		}
	}
	if first := events[0].Time; first.Day() != 25 || first.Hour() < 5 || first.Hour() > 9 {
		t.Errorf("first sunrise at %s, want morning of the 25th", first)
	}
}

func TestDaylight(t *testing.T) {
	day := time.Date(2020, time.June, 21, 0, 0, 0, 0, santaCruz.Location)
	tests := []struct {
		hour int
		want bool
	}{
		{0, false},
		{3, false},
		{9, true},
		{12, true},
		{17, true},
		{23, false},
	}
	for _, tc := range tests {
		at := day.Add(time.Duration(tc.hour) * time.Hour)
		if got := Daylight(at, santaCruz); got != tc.want {
			t.Errorf("Daylight(%s) = %t, want %t", at.Format(time.Kitchen), got, tc.want)
		}
	}
}

func TestAt(t *testing.T) {
	p := At(tides.Station{ID: "x", Lat: 1, Long: 2})
	if p.Location != time.UTC {
		t.Errorf("station without a zone should be UTC, got %s", p.Location)
	}
}
