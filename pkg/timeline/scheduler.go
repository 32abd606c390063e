package timeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/spencer-p/tidewatch/pkg/metrics"
	"github.com/spencer-p/tidewatch/pkg/notify"
	"github.com/spencer-p/tidewatch/pkg/store"
	"github.com/spencer-p/tidewatch/pkg/sunset"
	"github.com/spencer-p/tidewatch/pkg/syncer"
	"github.com/spencer-p/tidewatch/pkg/tides"
)

// Source is the local snapshot owner, normally a *syncer.Coordinator.
type Source interface {
	Snapshot() tides.Snapshot
	Refresh(ctx context.Context) (tides.Snapshot, error)
}

type Options struct {
	Source Source
	Store  store.Store
	Server Server
	Log    *zap.SugaredLogger
}

type Scheduler struct {
	source Source
	store  store.Store
	server Server
	log    *zap.SugaredLogger

	// mu keeps reconciles from interleaving their marker load and save.
	mu sync.Mutex
	// observing counts running Observe loops.
	observing atomic.Int32
}

func New(opts Options) *Scheduler {
	s := &Scheduler{
		source: opts.Source,
		store:  opts.Store,
		server: opts.Server,
		log:    opts.Log,
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	return s
}

// Wake runs one scheduled cycle: refresh, then reconcile. A failed refresh is
// logged and the reconcile still runs against whatever is cached, so the
// timeline picks up anything the peer delivered. The next wake retries.
//
// While Observe is running, a successful refresh announces itself on the bus
// and Observe does the reconcile; Wake then returns Pending.
func (s *Scheduler) Wake(ctx context.Context) (Action, error) {
	_, err := s.source.Refresh(ctx)
	if err != nil {
		s.log.Warnw("refresh failed, reconciling with cached levels", "err", err)
	} else if s.observing.Load() > 0 {
		return Pending, nil
	}
	return s.Reconcile(ctx)
}

// Reconcile loads the persisted snapshot and station marker, extends or
// reloads the server's timeline, and records the snapshot's station as the
// new marker whichever way it went.
func (s *Scheduler) Reconcile(ctx context.Context) (Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := syncer.LoadSnapshot(ctx, s.store)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warnw("could not load snapshot, using in-memory copy", "err", err)
		}
		snap = s.source.Snapshot()
	}
	marker, err := LoadMarker(ctx, s.store)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Warnw("could not load station marker", "err", err)
	}

	horizon := s.server.LatestTimeTravelDate()
	action := Decide(marker, snap, horizon)
	all := entries(snap)
	switch action {
	case Extend:
		fresh := After(all, horizon)
		s.server.ExtendTimeline(fresh)
		s.log.Infow("extended timeline", "station", snap.Station.ID, "entries", len(fresh), "horizon", horizon)
	default:
		s.server.ReloadTimeline(all)
		s.log.Infow("reloaded timeline", "station", snap.Station.ID, "entries", len(all))
	}
	metrics.ObserveTimelineAction(action.String())

	if err := SaveMarker(ctx, s.store, snap.Station); err != nil {
		s.log.Errorw("could not save station marker", "station", snap.Station.ID, "err", err)
		return action, err
	}
	return action, nil
}

// Observe reconciles after every bus signal until ctx is done. bus must be
// the one the Source announces changes on.
func (s *Scheduler) Observe(ctx context.Context, bus *notify.Bus) error {
	signals, cancel := bus.Subscribe()
	defer cancel()
	s.observing.Add(1)
	defer s.observing.Add(-1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-signals:
			s.Reconcile(ctx)
		}
	}
}

// EntriesBefore returns at most limit entries strictly before date: the ones
// nearest date, ascending.
func (s *Scheduler) EntriesBefore(date time.Time, limit int) []Entry {
	var out []Entry
	for _, e := range entries(s.source.Snapshot()) {
		if e.Time.Before(date) {
			out = append(out, e)
		}
	}
	if limit < 0 {
		limit = 0
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// EntriesAfter returns at most limit entries strictly after date: the ones
// nearest date, ascending.
func (s *Scheduler) EntriesAfter(date time.Time, limit int) []Entry {
	out := After(entries(s.source.Snapshot()), date)
	if limit < 0 {
		limit = 0
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// NextWakeTime is when the cached levels run out, or now if there are none.
func (s *Scheduler) NextWakeTime(now time.Time) time.Time {
	if latest, ok := s.source.Snapshot().Latest(); ok {
		return latest.Time
	}
	return now
}

func (s *Scheduler) StartDate() (time.Time, bool) {
	first, ok := s.source.Snapshot().First()
	return first.Time, ok
}

func (s *Scheduler) EndDate() (time.Time, bool) {
	latest, ok := s.source.Snapshot().Latest()
	return latest.Time, ok
}

// Current is the entry for the first level not before now.
func (s *Scheduler) Current(now time.Time) (Entry, bool) {
	snap := s.source.Snapshot()
	l := snap.Current(now)
	if l == nil {
		return Entry{}, false
	}
	return NewEntry(*l, sunset.At(snap.Station)), true
}

type markerRecord struct {
	Station tides.Station `json:"station"`
}

// LoadMarker reads the last rendered station.
func LoadMarker(ctx context.Context, st store.Store) (*tides.Station, error) {
	data, err := st.Load(ctx, store.KeyMarker)
	if err != nil {
		return nil, err
	}
	var rec markerRecord
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode marker: %w", err)
	}
	if rec.Station.ID == "" {
		return nil, fmt.Errorf("decode marker: missing station id")
	}
	return &rec.Station, nil
}

// SaveMarker records station as the last rendered.
func SaveMarker(ctx context.Context, st store.Store, station tides.Station) error {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(&markerRecord{Station: station}); err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}
	return st.Save(ctx, store.KeyMarker, buf.Bytes())
}
