package noaa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spencer-p/tidewatch/pkg/tides"
)

const (
	NOAA_URL = "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter"
	TIME_FMT = "20060102"

	application = "TideWatch"
)

// Client fetches predictions over HTTP.
type Client struct {
	// BaseURL defaults to NOAA_URL.
	BaseURL string
	HTTP    *http.Client
}

func NewClient() *Client {
	return &Client{
		BaseURL: NOAA_URL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// GetPredictions performs the query. Transport failures, non-2xx responses,
// NOAA error bodies and malformed payloads are all errors.
func (c *Client) GetPredictions(ctx context.Context, q *PredictionQuery) (Predictions, error) {
	var result NOAAResult

	addr, err := q.url(c.BaseURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("noaa returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed noaa response: %w", err)
	}
	if result.Error != nil {
		return nil, result.Error
	}
	if result.Predictions == nil {
		return nil, fmt.Errorf("malformed noaa response: no predictions")
	}

	return result.Predictions, nil
}

// FetchLevels returns every hourly level NOAA has for the days spanning
// [from, to]. Callers trim to the exact window.
func (c *Client) FetchLevels(ctx context.Context, stationID string, from, to time.Time) ([]tides.WaterLevel, error) {
	preds, err := c.GetPredictions(ctx, &PredictionQuery{
		Start:   from,
		End:     to,
		Station: stationID,
	})
	if err != nil {
		return nil, err
	}
	return preds.Levels(), nil
}

func (q *PredictionQuery) url(base string) (*url.URL, error) {
	if base == "" {
		base = NOAA_URL
	}
	addr, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	addr.RawQuery = q.build().Encode()
	return addr, nil
}

func (q *PredictionQuery) build() url.Values {
	vals := make(url.Values)
	vals.Add("begin_date", q.Start.UTC().Format(TIME_FMT))
	vals.Add("end_date", q.End.UTC().Format(TIME_FMT))
	vals.Add("station", q.Station)
	vals.Add("product", "predictions")
	vals.Add("datum", "MLLW")
	vals.Add("time_zone", "gmt")
	vals.Add("interval", "h")
	vals.Add("units", "metric")
	vals.Add("application", application)
	vals.Add("format", "json")
	return vals
}
