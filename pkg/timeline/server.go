package timeline

import (
	"sync"
	"time"
)

// Server is the host that renders the timeline.
type Server interface {
	// ExtendTimeline appends entries past the current horizon.
	ExtendTimeline(entries []Entry)
	// ReloadTimeline replaces everything rendered.
	ReloadTimeline(entries []Entry)
	// LatestTimeTravelDate is the time of the last rendered entry, zero
	// if nothing is rendered.
	LatestTimeTravelDate() time.Time
}

// Recorder is a Server that keeps the rendered entries in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	extends int
	reloads int
}

func (r *Recorder) ExtendTimeline(entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extends++
	r.entries = append(r.entries, entries...)
}

func (r *Recorder) ReloadTimeline(entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloads++
	r.entries = append([]Entry(nil), entries...)
}

func (r *Recorder) LatestTimeTravelDate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return time.Time{}
	}
	return r.entries[len(r.entries)-1].Time
}

// Entries is a copy of what is rendered.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Counts reports how many extends and reloads the recorder has seen.
func (r *Recorder) Counts() (extends, reloads int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.extends, r.reloads
}
