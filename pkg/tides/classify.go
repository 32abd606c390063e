package tides

// Classify assigns a Situation to every level and computes the mean height.
// Levels must be sorted ascending by time without duplicate timestamps. The
// result is a new slice; levels is left untouched.
//
// The first and last samples only have one neighbor and are Rising or Falling.
// Interior samples are High or Low when strictly above or below both
// neighbors, otherwise Rising when the next sample is higher and Falling in
// every other case, flat runs included. A lone sample is Unknown.
func Classify(levels []WaterLevel) ([]WaterLevel, float64) {
	n := len(levels)
	if n == 0 {
		return nil, 0
	}

	out := make([]WaterLevel, n)
	copy(out, levels)

	if n == 1 {
		out[0].Situation = Unknown
		return out, out[0].Height
	}

	for i := range out {
		cur := out[i].Height
		switch i {
		case 0:
			out[i].Situation = direction(cur, out[1].Height)
			continue
		case n - 1:
			out[i].Situation = direction(out[i-1].Height, cur)
			continue
		}

		prev, next := out[i-1].Height, out[i+1].Height
		switch {
		case cur > prev && cur > next:
			out[i].Situation = High
		case cur < prev && cur < next:
			out[i].Situation = Low
		case cur < next:
			out[i].Situation = Rising
		default:
			out[i].Situation = Falling
		}
	}
	return out, Average(out)
}

// direction is Falling when the earlier height is above the later one.
func direction(earlier, later float64) Situation {
	if earlier > later {
		return Falling
	}
	return Rising
}

// Average is the arithmetic mean of the heights, or 0 for no levels.
func Average(levels []WaterLevel) float64 {
	if len(levels) == 0 {
		return 0
	}
	var total float64
	for _, l := range levels {
		total += l.Height
	}
	return total / float64(len(levels))
}
