package tides

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	in := []WaterLevel{
		{Time: t0.Add(2 * time.Hour), Height: 3},
		{Time: t0, Height: 1},
		{Time: t0.Add(time.Hour), Height: 2},
		{Time: t0, Height: 9},
	}
	want := []WaterLevel{
		{Time: t0, Height: 1},
		{Time: t0.Add(time.Hour), Height: 2},
		{Time: t0.Add(2 * time.Hour), Height: 3},
	}
	got := Normalize(in)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("incorrect normalize (-want,+got):\n%s", diff)
	}
	if !in[0].Time.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("input was reordered")
	}
}

func TestBetweenIsExclusive(t *testing.T) {
	levels := hourly(0, 1, 2, 3, 4)
	from, to := t0, t0.Add(4*time.Hour)

	got := Between(levels, from, to)
	want := levels[1:4]
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("edge samples should be excluded (-want,+got):\n%s", diff)
	}
}

func TestSituationText(t *testing.T) {
	for _, s := range []Situation{Unknown, High, Low, Rising, Falling} {
		t.Run(s.String(), func(t *testing.T) {
			buf, err := s.MarshalText()
			if err != nil {
				t.Fatalf("unexpected: %v", err)
			}
			var got Situation
			if err := got.UnmarshalText(buf); err != nil {
				t.Fatalf("unexpected: %v", err)
			}
			if got != s {
				t.Errorf("got %s, want %s", got, s)
			}
		})
	}

	var s Situation
	if err := s.UnmarshalText([]byte("Slack")); err == nil {
		t.Errorf("expected error for unknown situation")
	}
	if Situation(42).String() != "invalid" {
		t.Errorf("out of range situation should print invalid")
	}
}
