package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spencer-p/tidewatch/pkg/link"
	"github.com/spencer-p/tidewatch/pkg/metrics"
	"github.com/spencer-p/tidewatch/pkg/notify"
	"github.com/spencer-p/tidewatch/pkg/store"
	"github.com/spencer-p/tidewatch/pkg/tides"
	"github.com/spencer-p/tidewatch/pkg/timetricks"
)

// DefaultSpan is how far either side of now a refresh reaches.
const DefaultSpan = 24 * time.Hour

const (
	// how many envelope IDs to remember for spotting redeliveries
	seenIDs = 32

	// refreshTimeout bounds a shared refresh, which no single caller's
	// context may cancel.
	refreshTimeout = 30 * time.Second
)

// Fetcher produces raw levels for a station. Implementations may return
// samples outside (from, to); the coordinator trims them.
type Fetcher interface {
	FetchLevels(ctx context.Context, stationID string, from, to time.Time) ([]tides.WaterLevel, error)
}

// Options configures a Coordinator. Link and Bus may be nil.
type Options struct {
	// Device names this side in logs, metrics and envelopes.
	Device  string
	Fetcher Fetcher
	Store   store.Store
	Link    link.Link
	Bus     *notify.Bus
	Catalog *tides.Catalog
	Log     *zap.SugaredLogger
	// Span defaults to DefaultSpan.
	Span time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Coordinator owns the local snapshot.
type Coordinator struct {
	device  string
	fetcher Fetcher
	store   store.Store
	link    link.Link
	bus     *notify.Bus
	catalog *tides.Catalog
	log     *zap.SugaredLogger
	span    time.Duration
	now     func() time.Time

	// refreshMu serializes refreshes and station changes. flight lets
	// concurrent Refresh callers share one fetch.
	refreshMu sync.Mutex
	flight    singleflight.Group

	// applyMu is held from replacing the snapshot until it is saved, so the
	// last snapshot written to memory is also the last one in the store.
	applyMu sync.Mutex

	mu    sync.Mutex
	snap  tides.Snapshot
	stale bool
	seen  []uuid.UUID
	// resend is set when a station change could not be fetched; the next
	// successful refresh goes out as a new station instead.
	resend bool
}

func New(opts Options) *Coordinator {
	c := &Coordinator{
		device:  opts.Device,
		fetcher: opts.Fetcher,
		store:   opts.Store,
		link:    opts.Link,
		bus:     opts.Bus,
		catalog: opts.Catalog,
		log:     opts.Log,
		span:    opts.Span,
		now:     opts.Now,
	}
	if c.catalog == nil {
		c.catalog = tides.DefaultCatalog
	}
	if c.span == 0 {
		c.span = DefaultSpan
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	c.snap = tides.NewSnapshot(c.catalog.Default())

	if c.link != nil {
		c.link.OnDeliver(func(payload []byte) {
			c.OnReceive(context.Background(), payload)
		})
	}
	return c
}

// Load reads the persisted snapshot into memory. A missing or unreadable
// snapshot leaves the default: the first catalog station with no levels.
func (c *Coordinator) Load(ctx context.Context) tides.Snapshot {
	snap, err := LoadSnapshot(ctx, c.store)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Warnw("could not load snapshot, using default", "err", err)
		}
		snap = tides.NewSnapshot(c.catalog.Default())
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	metrics.SetCachedLevels(c.device, len(snap.Levels))
	return snap.Clone()
}

// LoadSnapshot reads and decodes the persisted snapshot.
func LoadSnapshot(ctx context.Context, s store.Store) (tides.Snapshot, error) {
	data, err := s.Load(ctx, store.KeySnapshot)
	if err != nil {
		return tides.Snapshot{}, err
	}
	return tides.DecodeSnapshot(data)
}

// Snapshot is a copy of the current state.
func (c *Coordinator) Snapshot() tides.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Clone()
}

// Stale is true when the latest refresh failed.
func (c *Coordinator) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// Refresh fetches the levels for [now-span, now+span], keeps those strictly
// inside the window, classifies them, and replaces the snapshot's levels. The
// station is unchanged. The result is persisted, announced on the bus and sent
// to the peer as a latest-wins update.
//
// On a fetch failure the snapshot is left as it was and returned together
// with a *FetchError.
func (c *Coordinator) Refresh(ctx context.Context) (tides.Snapshot, error) {
	v, err, _ := c.flight.Do("refresh", func() (interface{}, error) {
		// Joined callers share this fetch, so it must outlive whichever
		// caller started it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		c.refreshMu.Lock()
		defer c.refreshMu.Unlock()
		return c.refreshLocked(ctx, false)
	})
	return v.(tides.Snapshot).Clone(), err
}

// SelectStation switches to another station. Choosing the current station
// does nothing. Otherwise the old levels are dropped, the empty snapshot is
// persisted and announced, and a refresh runs whose result is sent to the
// peer as a queued transfer. If that refresh fails, the next one to succeed is
// queued in its place.
func (c *Coordinator) SelectStation(ctx context.Context, station tides.Station) (tides.Snapshot, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.applyMu.Lock()
	c.mu.Lock()
	if c.snap.Station.Equal(station) {
		s := c.snap.Clone()
		c.mu.Unlock()
		c.applyMu.Unlock()
		return s, nil
	}
	fresh := tides.NewSnapshot(station)
	c.snap = fresh
	c.mu.Unlock()
	c.persist(ctx, fresh)
	c.applyMu.Unlock()

	c.log.Infow("station selected", "station", station.ID, "name", station.Name)
	c.changed(fresh)

	snap, err := c.refreshLocked(ctx, true)
	if err != nil {
		c.mu.Lock()
		c.resend = true
		c.mu.Unlock()
	}
	return snap, err
}

func (c *Coordinator) refreshLocked(ctx context.Context, newStation bool) (tides.Snapshot, error) {
	start := c.now()
	current := c.Snapshot()
	from, to := timetricks.Window(start, c.span)

	raw, err := c.fetcher.FetchLevels(ctx, current.Station.ID, from, to)
	metrics.ObserveRefresh(c.device, c.now().Sub(start), err)
	if err != nil {
		c.mu.Lock()
		c.stale = true
		c.mu.Unlock()
		c.log.Warnw("refresh failed, keeping cached levels",
			"station", current.Station.ID,
			"levels", len(current.Levels),
			"err", err)
		return current, &FetchError{StationID: current.Station.ID, Err: err}
	}

	levels := tides.Between(tides.Normalize(raw), from, to)
	next := current.WithLevels(levels, start)

	c.applyMu.Lock()
	c.mu.Lock()
	c.snap = next
	c.stale = false
	if c.resend {
		newStation = true
		c.resend = false
	}
	c.mu.Unlock()
	c.persist(ctx, next)
	c.applyMu.Unlock()

	c.log.Infow("refreshed",
		"station", next.Station.ID,
		"levels", len(next.Levels),
		"average", next.Average,
		"new_station", newStation)

	c.changed(next)
	c.Publish(ctx, next, newStation)
	return next.Clone(), nil
}

// Publish sends s to the peer. A new station goes as a queued transfer so it
// survives the peer being away; a plain refresh goes latest-wins. Failures
// are logged and returned but never affect local state.
func (c *Coordinator) Publish(ctx context.Context, s tides.Snapshot, isNewStation bool) error {
	if c.link == nil {
		return nil
	}

	env := Envelope{
		ID:         uuid.New(),
		Sender:     c.device,
		SentAt:     c.now(),
		NewStation: isNewStation,
	}
	payload, err := EncodeEnvelope(env, s)
	mode := link.Latest
	if isNewStation {
		mode = link.Queued
	}
	if err == nil {
		if isNewStation {
			err = c.link.SendQueued(ctx, payload)
		} else {
			err = c.link.SendLatest(ctx, payload)
		}
	}

	metrics.ObserveSend(c.device, string(mode), err)
	if err != nil {
		c.log.Warnw("could not send snapshot to peer", "mode", mode, "err", err)
		return err
	}
	c.log.Debugw("sent snapshot to peer", "mode", mode, "id", env.ID, "levels", len(s.Levels))
	return nil
}

// OnReceive applies a payload delivered by the peer: the snapshot inside
// replaces local state and is persisted, then observers are told. A
// redelivered envelope was already applied and is ignored, so it cannot roll
// back anything written since.
func (c *Coordinator) OnReceive(ctx context.Context, payload []byte) error {
	env, snap, err := DecodeEnvelope(payload)
	metrics.ObserveReceive(c.device, err)
	if err != nil {
		c.log.Warnw("dropping undecodable snapshot from peer", "err", err)
		return err
	}

	c.applyMu.Lock()
	c.mu.Lock()
	if c.remember(env.ID) {
		c.mu.Unlock()
		c.applyMu.Unlock()
		c.log.Debugw("ignoring redelivered snapshot", "from", env.Sender, "id", env.ID)
		return nil
	}
	c.snap = snap
	c.stale = false
	c.resend = false
	c.mu.Unlock()
	c.persist(ctx, snap)
	c.applyMu.Unlock()

	c.log.Infow("received snapshot",
		"from", env.Sender,
		"station", snap.Station.ID,
		"levels", len(snap.Levels),
		"new_station", env.NewStation)

	c.changed(snap)
	return nil
}

// remember records id and reports whether it was already seen. Requires c.mu.
func (c *Coordinator) remember(id uuid.UUID) bool {
	for _, s := range c.seen {
		if s == id {
			return true
		}
	}
	if len(c.seen) == seenIDs {
		c.seen = c.seen[1:]
	}
	c.seen = append(c.seen, id)
	return false
}

// persist saves s. A failed save is logged; memory keeps the new state.
func (c *Coordinator) persist(ctx context.Context, s tides.Snapshot) {
	data, err := tides.EncodeSnapshot(s)
	if err == nil {
		err = c.store.Save(ctx, store.KeySnapshot, data)
	}
	if err != nil {
		c.log.Errorw("could not persist snapshot", "station", s.Station.ID, "err", err)
	}
}

func (c *Coordinator) changed(s tides.Snapshot) {
	metrics.SetCachedLevels(c.device, len(s.Levels))
	if c.bus != nil {
		c.bus.Publish()
	}
}
