// Package notify is the in-process "snapshot changed" signal. Signals carry
// no payload; subscribers reload whatever they need from the coordinator or
// the store.
package notify

import "sync"

// Bus fans a signal out to every subscriber. A subscriber that has not yet
// drained its previous signal gets nothing new: signals coalesce.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan struct{})}
}

// Subscribe returns a channel that receives a value after each Publish, and a
// function that unsubscribes and closes the channel.
func (b *Bus) Subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish never blocks.
func (b *Bus) Publish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
