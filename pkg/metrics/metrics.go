package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      "request_latency",
			Subsystem: "tidewatch",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.2, 0.4, 0.8, 1.0, 2.0, 4.0, 8.0, 16.0, 32.0},
		},
		[]string{"verb", "path", "code"},
	)

	refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "refreshes_total",
			Subsystem: "tidewatch",
			Help:      "Refresh attempts by device and outcome.",
		},
		[]string{"device", "outcome"},
	)

	refreshLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:      "refresh_latency",
			Subsystem: "tidewatch",
			Help:      "Refresh latencies in seconds, fetch included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"device"},
	)

	sends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "snapshot_sends_total",
			Subsystem: "tidewatch",
			Help:      "Snapshots sent to the paired device by mode and outcome.",
		},
		[]string{"device", "mode", "outcome"},
	)

	receives = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "snapshot_receives_total",
			Subsystem: "tidewatch",
			Help:      "Snapshots received from the paired device by outcome.",
		},
		[]string{"device", "outcome"},
	)

	timelineActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "timeline_actions_total",
			Subsystem: "tidewatch",
			Help:      "Timeline extend/reload decisions.",
		},
		[]string{"action"},
	)

	levels = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:      "cached_levels",
			Subsystem: "tidewatch",
			Help:      "Water levels in the current snapshot.",
		},
		[]string{"device"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveRefresh records one refresh attempt.
func ObserveRefresh(device string, took time.Duration, err error) {
	refreshes.WithLabelValues(device, outcome(err)).Inc()
	refreshLatency.WithLabelValues(device).Observe(took.Seconds())
}

// ObserveSend records one snapshot transfer; mode is "latest" or "queued".
func ObserveSend(device, mode string, err error) {
	sends.WithLabelValues(device, mode, outcome(err)).Inc()
}

// ObserveReceive records one delivered snapshot.
func ObserveReceive(device string, err error) {
	receives.WithLabelValues(device, outcome(err)).Inc()
}

func ObserveTimelineAction(action string) {
	timelineActions.WithLabelValues(action).Inc()
}

func SetCachedLevels(device string, n int) {
	levels.WithLabelValues(device).Set(float64(n))
}

func ObserveRequestLatency(verb, path, code string, latency float64) {
	requestLatency.With(prometheus.Labels{
		"code": code,
		"verb": verb,
		"path": path,
	}).Observe(latency)
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func LatencyHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := time.Now()
		verb := r.Method
		path := ""
		if r.URL != nil {
			path = r.URL.Path
		}
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		// Defer metric observing. Any panics in next are reported as 500 errors
		// and then re-thrown.
		defer func() {
			if err := recover(); err != nil {
				ObserveRequestLatency(verb, path, "500", time.Since(t).Seconds())
				panic(err)
			}
			ObserveRequestLatency(verb, path, strconv.Itoa(rec.code), time.Since(t).Seconds())
		}()

		next.ServeHTTP(rec, r)
	})
}
