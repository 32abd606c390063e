package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/spencer-p/tidewatch/pkg/notify"
	"github.com/spencer-p/tidewatch/pkg/store"
	"github.com/spencer-p/tidewatch/pkg/sunset"
	"github.com/spencer-p/tidewatch/pkg/tides"
)

var (
	t0         = time.Date(2016, time.March, 14, 0, 0, 0, 0, time.UTC)
	santaCruz  = tides.DefaultCatalog.Stations[0]
	sanFran, _ = tides.DefaultCatalog.Lookup("9414290")
)

// snapshotAt builds a classified snapshot with n hourly levels from start.
func snapshotAt(station tides.Station, start time.Time, n int) tides.Snapshot {
	levels := make([]tides.WaterLevel, n)
	for i := range levels {
		levels[i] = tides.WaterLevel{Time: start.Add(time.Duration(i) * time.Hour), Height: float64(i%6) / 2}
	}
	return tides.NewSnapshot(station).WithLevels(levels, start)
}

type fakeSource struct {
	mu        sync.Mutex
	snap      tides.Snapshot
	err       error
	refreshes int
	onRefresh func()
}

func (f *fakeSource) Snapshot() tides.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.Clone()
}

func (f *fakeSource) Refresh(ctx context.Context) (tides.Snapshot, error) {
	f.mu.Lock()
	f.refreshes++
	hook := f.onRefresh
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.Snapshot(), f.err
}

// set makes s both the in-memory and the persisted snapshot.
func (f *fakeSource) set(t *testing.T, st store.Store, s tides.Snapshot) {
	t.Helper()
	f.mu.Lock()
	f.snap = s
	f.mu.Unlock()
	data, err := tides.EncodeSnapshot(s)
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := st.Save(context.Background(), store.KeySnapshot, data); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func newScheduler() (*Scheduler, *fakeSource, *store.Memory, *Recorder) {
	src := &fakeSource{snap: tides.NewSnapshot(santaCruz)}
	st := store.NewMemory()
	rec := &Recorder{}
	return New(Options{Source: src, Store: st, Server: rec}), src, st, rec
}

func times(es []Entry) []time.Time {
	out := make([]time.Time, len(es))
	for i, e := range es {
		out[i] = e.Time
	}
	return out
}

func TestDecide(t *testing.T) {
	snap := snapshotAt(santaCruz, t0, 4)
	latest, _ := snap.Latest()

	tests := []struct {
		name    string
		marker  *tides.Station
		snap    tides.Snapshot
		horizon time.Time
		want    Action
	}{{
		name:    "no marker",
		marker:  nil,
		snap:    snap,
		horizon: t0,
		want:    Reload,
	}, {
		name:    "station changed",
		marker:  &sanFran,
		snap:    snap,
		horizon: t0,
		want:    Reload,
	}, {
		name:    "new levels past horizon",
		marker:  &santaCruz,
		snap:    snap,
		horizon: t0,
		want:    Extend,
	}, {
		name:    "nothing rendered yet",
		marker:  &santaCruz,
		snap:    snap,
		horizon: time.Time{},
		want:    Extend,
	}, {
		name:    "latest equals horizon",
		marker:  &santaCruz,
		snap:    snap,
		horizon: latest.Time,
		want:    Reload,
	}, {
		name:    "horizon ahead of levels",
		marker:  &santaCruz,
		snap:    snap,
		horizon: latest.Time.Add(time.Hour),
		want:    Reload,
	}, {
		name:    "no levels",
		marker:  &santaCruz,
		snap:    tides.NewSnapshot(santaCruz),
		horizon: t0,
		want:    Reload,
	}, {
		name:    "same id, different details",
		marker:  &tides.Station{ID: santaCruz.ID, Name: "renamed"},
		snap:    snap,
		horizon: t0,
		want:    Extend,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(tc.marker, tc.snap, tc.horizon); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	s, src, st, rec := newScheduler()

	// First wake: no marker, so everything is rebuilt.
	src.set(t, st, snapshotAt(santaCruz, t0, 6))
	if got, err := s.Reconcile(ctx); err != nil || got != Reload {
		t.Fatalf("got %s, %v; want reload", got, err)
	}
	if n := len(rec.Entries()); n != 6 {
		t.Errorf("rendered %d entries, want 6", n)
	}
	marker, err := LoadMarker(ctx, st)
	if err != nil || !marker.Equal(santaCruz) {
		t.Fatalf("marker not saved: %v, %v", marker, err)
	}

	// A later fetch overlaps the first and reaches three hours further.
	src.set(t, st, snapshotAt(santaCruz, t0.Add(3*time.Hour), 6))
	if got, _ := s.Reconcile(ctx); got != Extend {
		t.Fatalf("got %s, want extend", got)
	}
	want := times(entries(snapshotAt(santaCruz, t0, 9)))
	if diff := cmp.Diff(want, times(rec.Entries())); diff != "" {
		t.Errorf("extend should append only new entries (-want,+got):\n%s", diff)
	}

	// Nothing new: rebuilt, not extended.
	if got, _ := s.Reconcile(ctx); got != Reload {
		t.Errorf("got %s, want reload", got)
	}

	// The user picked another station.
	src.set(t, st, snapshotAt(sanFran, t0.Add(12*time.Hour), 2))
	if got, _ := s.Reconcile(ctx); got != Reload {
		t.Errorf("got %s, want reload", got)
	}
	want = times(entries(snapshotAt(sanFran, t0.Add(12*time.Hour), 2)))
	if diff := cmp.Diff(want, times(rec.Entries())); diff != "" {
		t.Errorf("reload should replace everything (-want,+got):\n%s", diff)
	}
	if marker, _ := LoadMarker(ctx, st); !marker.Equal(sanFran) {
		t.Errorf("marker is %s, want %s", marker.ID, sanFran.ID)
	}

	if extends, reloads := rec.Counts(); extends != 1 || reloads != 3 {
		t.Errorf("got %d extends and %d reloads, want 1 and 3", extends, reloads)
	}
}

func TestReconcileWithoutPersistedSnapshot(t *testing.T) {
	s, src, _, rec := newScheduler()
	src.snap = snapshotAt(sanFran, t0, 3)

	if got, err := s.Reconcile(context.Background()); err != nil || got != Reload {
		t.Fatalf("got %s, %v; want reload", got, err)
	}
	if n := len(rec.Entries()); n != 3 {
		t.Errorf("rendered %d entries, want the 3 held in memory", n)
	}
}

type brokenMarkerStore struct {
	*store.Memory
}

func (b brokenMarkerStore) Save(ctx context.Context, key string, value []byte) error {
	if key == store.KeyMarker {
		return errors.New("read-only")
	}
	return b.Memory.Save(ctx, key, value)
}

func TestReconcileMarkerSaveFails(t *testing.T) {
	src := &fakeSource{snap: snapshotAt(santaCruz, t0, 3)}
	rec := &Recorder{}
	s := New(Options{Source: src, Store: brokenMarkerStore{store.NewMemory()}, Server: rec})

	if _, err := s.Reconcile(context.Background()); err == nil {
		t.Errorf("expected error")
	}
	if n := len(rec.Entries()); n != 3 {
		t.Errorf("timeline should still be rendered, got %d entries", n)
	}
}

func TestWake(t *testing.T) {
	ctx := context.Background()

	t.Run("refresh ok", func(t *testing.T) {
		s, src, st, rec := newScheduler()
		src.onRefresh = func() { src.set(t, st, snapshotAt(santaCruz, t0, 4)) }

		if got, err := s.Wake(ctx); err != nil || got != Reload {
			t.Fatalf("got %s, %v; want reload", got, err)
		}
		if src.refreshes != 1 {
			t.Errorf("got %d refreshes, want 1", src.refreshes)
		}
		if n := len(rec.Entries()); n != 4 {
			t.Errorf("rendered %d entries, want 4", n)
		}
	})

	t.Run("refresh fails", func(t *testing.T) {
		s, src, st, rec := newScheduler()
		src.set(t, st, snapshotAt(santaCruz, t0, 5))
		src.err = errors.New("offline")

		if _, err := s.Wake(ctx); err != nil {
			t.Fatalf("a failed refresh should not fail the wake: %v", err)
		}
		if n := len(rec.Entries()); n != 5 {
			t.Errorf("rendered %d entries, want the 5 cached", n)
		}
	})
}

func TestObserve(t *testing.T) {
	s, src, st, rec := newScheduler()
	src.set(t, st, snapshotAt(santaCruz, t0, 2))
	bus := notify.NewBus()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Observe(ctx, bus) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.Entries()) == 0 && time.Now().Before(deadline) {
		bus.Publish()
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if n := len(rec.Entries()); n != 2 {
		t.Errorf("rendered %d entries, want 2", n)
	}
}

func TestEntriesBefore(t *testing.T) {
	s, src, _, _ := newScheduler()
	src.snap = snapshotAt(santaCruz, t0, 10)

	tests := []struct {
		name  string
		date  time.Time
		limit int
		want  []time.Time
	}{{
		name:  "trims earliest",
		date:  t0.Add(5 * time.Hour),
		limit: 2,
		want:  []time.Time{t0.Add(3 * time.Hour), t0.Add(4 * time.Hour)},
	}, {
		name:  "fewer than limit",
		date:  t0.Add(2 * time.Hour),
		limit: 5,
		want:  []time.Time{t0, t0.Add(time.Hour)},
	}, {
		name:  "date is exclusive",
		date:  t0,
		limit: 5,
		want:  nil,
	}, {
		name:  "zero limit",
		date:  t0.Add(5 * time.Hour),
		limit: 0,
		want:  nil,
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := times(s.EntriesBefore(tc.date, tc.limit))
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("(-want,+got):\n%s", diff)
			}
		})
	}
}

func TestEntriesAfter(t *testing.T) {
	s, src, _, _ := newScheduler()
	src.snap = snapshotAt(santaCruz, t0, 10)

	got := times(s.EntriesAfter(t0.Add(5*time.Hour), 3))
	want := []time.Time{t0.Add(6 * time.Hour), t0.Add(7 * time.Hour), t0.Add(8 * time.Hour)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("should keep the earliest after date (-want,+got):\n%s", diff)
	}

	if got := s.EntriesAfter(t0.Add(9*time.Hour), 3); len(got) != 0 {
		t.Errorf("nothing is after the last level, got %d", len(got))
	}
}

func TestQueriesOnEmptySnapshot(t *testing.T) {
	s, _, _, _ := newScheduler()
	now := t0.Add(42 * time.Minute)

	if got := s.NextWakeTime(now); !got.Equal(now) {
		t.Errorf("next wake %s, want now", got)
	}
	if _, ok := s.StartDate(); ok {
		t.Errorf("empty snapshot has no start date")
	}
	if _, ok := s.EndDate(); ok {
		t.Errorf("empty snapshot has no end date")
	}
	if _, ok := s.Current(now); ok {
		t.Errorf("empty snapshot has no current entry")
	}
	if got := s.EntriesBefore(now, 10); len(got) != 0 {
		t.Errorf("got %d entries", len(got))
	}
}

func TestQueries(t *testing.T) {
	s, src, _, _ := newScheduler()
	src.snap = snapshotAt(santaCruz, t0, 10)
	last := t0.Add(9 * time.Hour)

	if got := s.NextWakeTime(t0); !got.Equal(last) {
		t.Errorf("next wake %s, want %s", got, last)
	}
	if got, _ := s.StartDate(); !got.Equal(t0) {
		t.Errorf("start %s, want %s", got, t0)
	}
	if got, _ := s.EndDate(); !got.Equal(last) {
		t.Errorf("end %s, want %s", got, last)
	}
	cur, ok := s.Current(t0.Add(90 * time.Minute))
	if !ok || !cur.Time.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("current is %v at %s, want the level at 02:00", ok, cur.Time)
	}
}

func TestNewEntry(t *testing.T) {
	place := sunset.At(santaCruz)
	tests := []struct {
		level tides.WaterLevel
		short string
		long  string
	}{{
		level: tides.WaterLevel{Time: t0, Height: 2.6, Situation: tides.Rising},
		short: "+2.6m",
		long:  "Rising, +2.6m",
	}, {
		level: tides.WaterLevel{Time: t0, Height: -0.34, Situation: tides.Low},
		short: "-0.3m",
		long:  "Low, -0.3m",
	}, {
		level: tides.WaterLevel{Time: t0, Height: 0, Situation: tides.Unknown},
		short: "+0.0m",
		long:  "Unknown, +0.0m",
	}}

	for _, tc := range tests {
		t.Run(tc.long, func(t *testing.T) {
			e := NewEntry(tc.level, place)
			if e.ShortText != tc.short || e.LongText != tc.long {
				t.Errorf("got %q / %q, want %q / %q", e.ShortText, e.LongText, tc.short, tc.long)
			}
			if e.Group != tc.level.Situation.String() {
				t.Errorf("group %q, want %q", e.Group, tc.level.Situation)
			}
		})
	}
}

func ExampleDecide() {
	snap := snapshotAt(santaCruz, t0, 24)
	fmt.Println(Decide(&santaCruz, snap, t0.Add(12*time.Hour)))
	fmt.Println(Decide(&sanFran, snap, t0.Add(12*time.Hour)))
	fmt.Println(Decide(nil, snap, t0))
	// Output:
	// extend
	// reload
	// reload
}
