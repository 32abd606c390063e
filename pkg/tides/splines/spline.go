// Package splines joins discrete water levels into a continuous curve so a
// height can be read at any instant between two samples.
package splines

import (
	"math"
	"time"

	"github.com/spencer-p/tidewatch/pkg/tides"
)

// Curve links one water level to the next smoothly. Its derivative at Start
// and End is zero and it is undefined outside [Start, End].
type Curve struct {
	Start, End time.Time
	a, b, c, d float64
}

// A Spline is a slice of curves linked together end to end.
type Spline []Curve

// Through builds a spline through sorted levels.
func Through(levels []tides.WaterLevel) Spline {
	if len(levels) < 2 {
		return nil
	}

	curves := make([]Curve, len(levels)-1)
	for i := 0; i < len(levels)-1; i++ {
		curves[i] = curveBetween(
			levels[i].Time, levels[i].Height,
			levels[i+1].Time, levels[i+1].Height)
	}
	return curves
}

// HeightAt evaluates the spline through the snapshot's levels at t. ok is
// false outside the snapshot's window.
func HeightAt(s tides.Snapshot, t time.Time) (height float64, ok bool) {
	if len(s.Levels) == 1 && s.Levels[0].Time.Equal(t) {
		return s.Levels[0].Height, true
	}
	h := Through(s.Levels).Eval(t)
	return h, !math.IsNaN(h)
}

// Discrete samples n evenly spaced heights across the spline.
func Discrete(spline Spline, n int) []float64 {
	if len(spline) < 1 || n < 2 {
		return nil
	}
	start := spline[0].Start
	end := spline[len(spline)-1].End
	step := time.Duration(float64(end.Sub(start)) / float64(n-1))

	result := make([]float64, n)
	for i := range result {
		result[i] = spline.Eval(start.Add(step * time.Duration(i)))
	}
	return result
}

func curveBetween(time1 time.Time, h1 float64, time2 time.Time, h2 float64) Curve {
	t1 := 0.0
	t2 := xrel(time1, time2)
	denominator := math.Pow(t1-t2, 3.0)
	a := (-2 * (h1 - h2)) / denominator
	b := (3 * (h1 - h2) * (t1 + t2)) / denominator
	c := (-6 * (h1 - h2) * t1 * t2) / denominator
	d := -1 * (-1*h2*math.Pow(t1, 3) + 3*h2*math.Pow(t1, 2)*t2 - 3*h1*t1*math.Pow(t2, 2) + h1*math.Pow(t2, 3)) / denominator
	return Curve{
		Start: time1,
		End:   time2,
		a:     a,
		b:     b,
		c:     c,
		d:     d,
	}
}

// Eval finds the curve covering t by binary search. NaN outside the spline.
func (s Spline) Eval(t time.Time) float64 {
	left, right := 0, len(s)
	for right > left {
		mid := left + (right-left)/2
		if t.Before(s[mid].Start) {
			right = mid
		} else if t.After(s[mid].End) {
			left = mid + 1
		} else {
			return s[mid].Eval(t)
		}
	}
	return math.NaN()
}

func (c Curve) Eval(t time.Time) float64 {
	if t.Before(c.Start) || t.After(c.End) {
		return math.NaN()
	}
	x := xrel(c.Start, t)
	return c.a*x*x*x + c.b*x*x + c.c*x + c.d
}

// xrel computes an x coordinate for t relative to origin, keeping the
// floating point values small.
func xrel(origin time.Time, t time.Time) float64 {
	return float64(t.Unix() - origin.Unix())
}
