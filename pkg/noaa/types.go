package noaa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spencer-p/tidewatch/pkg/tides"
)

const predTimeFormat = "2006-01-02 15:04"

// Prediction holds a single water level prediction.
type Prediction struct {
	// UTC time of the prediction
	Time Time `json:"t"`
	// Height in meters
	Height Height `json:"v"`
}

// Verify the custom types can be unmarshaled
var _ json.Unmarshaler = &Time{}
var _ json.Unmarshaler = new(Height)

// Predictions is a time series of Prediction.
type Predictions []Prediction

// NOAAResult is the data type returned by the NOAA API. A failed query comes
// back with status 200 and Error set instead of Predictions.
type NOAAResult struct {
	Predictions Predictions `json:"predictions"`
	Error       *APIError   `json:"error"`
}

// APIError is the error object NOAA embeds in a response body.
type APIError struct {
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return "noaa: " + e.Message
}

// PredictionQuery is used to query tide data at a station in a given time
// window; see Client.GetPredictions. NOAA only honors whole days, so the
// window is widened to the days containing Start and End.
type PredictionQuery struct {
	Start   time.Time
	End     time.Time
	Station string
}

type Time time.Time

func (t *Time) UnmarshalJSON(buf []byte) error {
	var s string
	if err := json.Unmarshal(buf, &s); err != nil {
		return fmt.Errorf("prediction time %q not string: %w", buf, err)
	}
	parsed, err := time.ParseInLocation(predTimeFormat, s, time.UTC)
	if err != nil {
		return fmt.Errorf("prediction time %q not in fmt %q: %w", s, predTimeFormat, err)
	}
	*t = Time(parsed)
	return nil
}

type Height float64

func (h *Height) UnmarshalJSON(buf []byte) error {
	var s string
	if err := json.Unmarshal(buf, &s); err != nil {
		return fmt.Errorf("water height %q not string: %w", buf, err)
	}
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("water height %q not a float: %w", s, err)
	}
	*h = Height(parsed)
	return nil
}

func (p Prediction) T() time.Time {
	return time.Time(p.Time)
}

func (p Prediction) String() string {
	return fmt.Sprintf("{t: %s, v: %f}",
		p.T().Format(time.RFC822),
		p.Height)
}

// Levels converts predictions to unclassified water levels.
func (ps Predictions) Levels() []tides.WaterLevel {
	levels := make([]tides.WaterLevel, len(ps))
	for i, p := range ps {
		levels[i] = tides.WaterLevel{Time: p.T(), Height: float64(p.Height)}
	}
	return levels
}
