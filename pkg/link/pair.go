package link

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("link closed")

// Pair connects two in-process endpoints. While the pair is unreachable,
// latest-wins sends overwrite each other and queued sends pile up; both drain
// to the peer once it becomes reachable and has a handler.
type Pair struct {
	mu        sync.Mutex
	reachable bool
	ends      [2]*Endpoint
}

func NewPair() *Pair {
	p := &Pair{reachable: true}
	p.ends[0] = &Endpoint{pair: p, side: 0}
	p.ends[1] = &Endpoint{pair: p, side: 1}
	return p
}

func (p *Pair) A() *Endpoint { return p.ends[0] }
func (p *Pair) B() *Endpoint { return p.ends[1] }

// SetReachable simulates the devices going in and out of range.
func (p *Pair) SetReachable(reachable bool) {
	p.mu.Lock()
	p.reachable = reachable
	p.mu.Unlock()
	if reachable {
		p.ends[0].flush()
		p.ends[1].flush()
	}
}

// Endpoint is one side of a Pair.
type Endpoint struct {
	pair *Pair
	side int

	// Inbound state, guarded by pair.mu.
	handler    func([]byte)
	queue      [][]byte
	latest     []byte
	superseded int
	closed     bool
	flushing   bool
}

func (e *Endpoint) peer() *Endpoint {
	return e.pair.ends[1-e.side]
}

func (e *Endpoint) SendLatest(ctx context.Context, payload []byte) error {
	peer := e.peer()
	e.pair.mu.Lock()
	if e.closed {
		e.pair.mu.Unlock()
		return ErrClosed
	}
	if peer.latest != nil {
		peer.superseded++
	}
	peer.latest = append([]byte(nil), payload...)
	e.pair.mu.Unlock()

	peer.flush()
	return nil
}

func (e *Endpoint) SendQueued(ctx context.Context, payload []byte) error {
	peer := e.peer()
	e.pair.mu.Lock()
	if e.closed {
		e.pair.mu.Unlock()
		return ErrClosed
	}
	peer.queue = append(peer.queue, append([]byte(nil), payload...))
	e.pair.mu.Unlock()

	peer.flush()
	return nil
}

func (e *Endpoint) OnDeliver(handler func([]byte)) {
	e.pair.mu.Lock()
	e.handler = handler
	e.pair.mu.Unlock()
	e.flush()
}

func (e *Endpoint) Close() error {
	e.pair.mu.Lock()
	defer e.pair.mu.Unlock()
	e.closed = true
	e.handler = nil
	return nil
}

// IsConnected reports whether the peer can be reached from this end.
func (e *Endpoint) IsConnected() bool {
	e.pair.mu.Lock()
	defer e.pair.mu.Unlock()
	return e.pair.reachable && !e.closed && !e.peer().closed
}

// Superseded counts latest-wins payloads that were replaced before delivery.
func (e *Endpoint) Superseded() int {
	e.pair.mu.Lock()
	defer e.pair.mu.Unlock()
	return e.superseded
}

// flush hands pending inbound payloads to the handler: queued transfers in
// send order, then the latest context. Only one goroutine flushes an endpoint
// at a time; payloads arriving meanwhile are picked up by that goroutine.
func (e *Endpoint) flush() {
	e.pair.mu.Lock()
	if e.flushing {
		e.pair.mu.Unlock()
		return
	}
	e.flushing = true

	for {
		if !e.pair.reachable || e.handler == nil || e.closed || (len(e.queue) == 0 && e.latest == nil) {
			e.flushing = false
			e.pair.mu.Unlock()
			return
		}
		handler := e.handler
		batch := e.queue
		if e.latest != nil {
			batch = append(batch, e.latest)
		}
		e.queue, e.latest = nil, nil
		e.pair.mu.Unlock()

		for _, payload := range batch {
			handler(payload)
		}
		e.pair.mu.Lock()
	}
}
