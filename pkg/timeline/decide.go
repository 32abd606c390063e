package timeline

import (
	"time"

	"github.com/spencer-p/tidewatch/pkg/tides"
)

type Action int

const (
	// Reload discards every rendered entry and rebuilds from the full
	// snapshot.
	Reload Action = iota
	// Extend appends the entries beyond the rendered horizon.
	Extend
	// Pending means a Wake left the reconcile to a running Observe loop.
	// Decide never returns it.
	Pending
)

func (a Action) String() string {
	switch a {
	case Extend:
		return "extend"
	case Pending:
		return "pending"
	default:
		return "reload"
	}
}

// Decide picks how to bring the rendered timeline up to date. marker is the
// station last rendered, nil if none. horizon is the latest entry time already
// rendered.
//
// The timeline is extended only when the station is unchanged and the snapshot
// reaches strictly past the horizon. Anything else reloads.
func Decide(marker *tides.Station, snap tides.Snapshot, horizon time.Time) Action {
	if marker == nil || !marker.Equal(snap.Station) {
		return Reload
	}
	latest, ok := snap.Latest()
	if !ok || !latest.Time.After(horizon) {
		return Reload
	}
	return Extend
}
