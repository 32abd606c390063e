// Package link carries encoded snapshots between the phone and the watch.
//
// Two delivery modes exist. SendLatest replaces whatever the peer has not yet
// received through SendLatest, so only the newest value is guaranteed to
// arrive. SendQueued is delivered eventually, in order, even if the peer is
// offline when it is sent. Either mode may deliver a message more than once.
package link

import "context"

// Link is one device's end of the pairing.
type Link interface {
	// SendLatest is a latest-wins context update.
	SendLatest(ctx context.Context, payload []byte) error
	// SendQueued is a guaranteed, ordered transfer.
	SendQueued(ctx context.Context, payload []byte) error
	// OnDeliver installs the handler for inbound payloads. Payloads that
	// arrived before a handler was installed are delivered to it first. The
	// handler is called once per delivered payload, one at a time.
	OnDeliver(handler func(payload []byte))
	Close() error
}

// Mode names the delivery mode, for logs and metrics.
type Mode string

const (
	Latest Mode = "latest"
	Queued Mode = "queued"
)
