package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spencer-p/tidewatch/pkg/cache"
	"github.com/spencer-p/tidewatch/pkg/metrics"
	"github.com/spencer-p/tidewatch/pkg/sunset"
	"github.com/spencer-p/tidewatch/pkg/syncer"
	"github.com/spencer-p/tidewatch/pkg/tides"
	"github.com/spencer-p/tidewatch/pkg/tides/splines"
	"github.com/spencer-p/tidewatch/pkg/timetricks"
)

const (
	maxSunDays = 7
	sunTTL     = 23 * time.Hour
)

// Coordinator is the part of *syncer.Coordinator the API drives.
type Coordinator interface {
	Snapshot() tides.Snapshot
	Stale() bool
	Refresh(ctx context.Context) (tides.Snapshot, error)
	SelectStation(ctx context.Context, station tides.Station) (tides.Snapshot, error)
}

// Peer reports whether the watch is reachable.
type Peer interface {
	IsConnected() bool
}

type Deps struct {
	Coordinator Coordinator
	// Peer is optional; without it responses carry no connection status.
	Peer    Peer
	Catalog *tides.Catalog
	Log     *zap.SugaredLogger
	Now     func() time.Time
}

type api struct {
	Deps
	sun *cache.Timed[sunset.SunEvents]
}

// Register installs the phone API and /metrics on r. Every route reports its
// latency.
func Register(r *mux.Router, d Deps) {
	if d.Catalog == nil {
		d.Catalog = tides.DefaultCatalog
	}
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	a := &api{Deps: d, sun: cache.NewTimed[sunset.SunEvents](sunTTL)}

	r.Use(metrics.LatencyHandler)
	r.Handle("/metrics", promhttp.Handler())

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/snapshot", a.serveSnapshot).Methods(http.MethodGet)
	v1.HandleFunc("/stations", a.serveStations).Methods(http.MethodGet)
	v1.HandleFunc("/station", a.selectStation).Methods(http.MethodPost)
	v1.HandleFunc("/refresh", a.refresh).Methods(http.MethodPost)
	v1.HandleFunc("/now", a.serveNow).Methods(http.MethodGet)
	v1.HandleFunc("/sun", a.serveSun).Methods(http.MethodGet)
}

// SnapshotResponse is the JSON form of the phone's state.
type SnapshotResponse struct {
	tides.Snapshot
	// Stale is set when the last refresh failed and the levels are older
	// than they should be.
	Stale   bool              `json:"stale"`
	Current *tides.WaterLevel `json:"current,omitempty"`
	// PeerConnected is unset when the server has no watch link.
	PeerConnected *bool `json:"peer_connected,omitempty"`
}

func (a *api) respond(w http.ResponseWriter, r *http.Request, snap tides.Snapshot) {
	switch r.FormValue("o") {
	case "msgpack":
		data, err := tides.EncodeSnapshot(snap)
		if err != nil {
			a.fail(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/msgpack")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	case "text":
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "%s (%s) average %+.2fm\n", snap.Station.Name, snap.Station.ID, snap.Average)
		for _, l := range snap.Levels {
			fmt.Fprintf(w, "%s\n", l.String())
		}
	default:
		resp := SnapshotResponse{
			Snapshot: snap,
			Stale:    a.Coordinator.Stale(),
			Current:  snap.Current(a.Now()),
		}
		if a.Peer != nil {
			connected := a.Peer.IsConnected()
			resp.PeerConnected = &connected
		}
		a.writeJSON(w, http.StatusOK, resp)
	}
}

func (a *api) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	a.respond(w, r, a.Coordinator.Snapshot())
}

func (a *api) serveStations(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.Catalog.Stations)
}

// selectStation switches to the station named by the "id" form value. A
// failed fetch still switches; the response is marked stale.
func (a *api) selectStation(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("id")
	station, ok := a.Catalog.Lookup(id)
	if !ok {
		a.fail(w, http.StatusNotFound, fmt.Errorf("no station %q", id))
		return
	}
	snap, err := a.Coordinator.SelectStation(r.Context(), station)
	a.logFetch(err)
	a.respond(w, r, snap)
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Coordinator.Refresh(r.Context())
	a.logFetch(err)
	a.respond(w, r, snap)
}

func (a *api) logFetch(err error) {
	var fe *syncer.FetchError
	if errors.As(err, &fe) {
		a.Log.Warnw("serving stale levels", "station", fe.StationID, "err", fe.Err)
	} else if err != nil {
		a.Log.Errorw("refresh failed", "err", err)
	}
}

// Reading is the water level at one instant, interpolated between samples.
type Reading struct {
	Time      time.Time       `json:"time"`
	Height    float64         `json:"height"`
	Situation tides.Situation `json:"situation"`
	Average   float64         `json:"average"`
	Station   string          `json:"station"`
	Day       string          `json:"day"`
}

func (a *api) serveNow(w http.ResponseWriter, r *http.Request) {
	now := a.Now()
	snap := a.Coordinator.Snapshot()

	height, ok := splines.HeightAt(snap, now)
	cur := snap.Current(now)
	if !ok || cur == nil {
		a.fail(w, http.StatusNotFound, fmt.Errorf("no levels cover %s", now.Format(time.RFC3339)))
		return
	}
	a.writeJSON(w, http.StatusOK, Reading{
		Time:      now,
		Height:    height,
		Situation: cur.Situation,
		Average:   snap.Average,
		Station:   snap.Station.ID,
		Day:       timetricks.Relative(cur.Time.In(snap.Station.Location()), now.In(snap.Station.Location())),
	})
}

// serveSun lists sunrises and sunsets at the current station, starting
// today, for "days" days.
func (a *api) serveSun(w http.ResponseWriter, r *http.Request) {
	days := 1
	if s := r.FormValue("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxSunDays {
			a.fail(w, http.StatusBadRequest, fmt.Errorf("days must be 1 to %d", maxSunDays))
			return
		}
		days = n
	}

	station := a.Coordinator.Snapshot().Station
	place := sunset.At(station)
	start := timetricks.TrimClock(a.Now().In(place.Location))
	key := fmt.Sprintf("%s %s %d", station.ID, timetricks.UniqueDay(start), days)

	events, ok := a.sun.Get(key)
	if !ok {
		events = sunset.GetSunEvents(start, time.Duration(days)*timetricks.Day, place)
		a.sun.Set(key, events)
	}
	a.writeJSON(w, http.StatusOK, events)
}

func (a *api) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Log.Errorw("failed to encode JSON result", "err", err)
	}
}

func (a *api) fail(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	fmt.Fprintf(w, "%v\n", err)
	if code >= 500 {
		a.Log.Errorw("request failed", "code", code, "err", err)
	}
}
