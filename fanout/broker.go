// Package fanout delivers events to any number of independent subscribers
// without letting a slow one stall the publisher.
package fanout

import "sync"

// Broker fans values out to subscribers. Delivery per subscriber is
// order-preserving; when a subscriber's buffer is full its oldest undrained
// value is dropped to make room, so a stalled observer loses history but
// never blocks the event loop.
type Broker[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	next   int
	buffer int
	closed bool
}

// NewBroker constructs a broker whose subscribers buffer up to size values.
func NewBroker[T any](size int) *Broker[T] {
	if size <= 0 {
		size = 16
	}
	return &Broker[T]{subs: make(map[int]chan T), buffer: size}
}

// Subscribe registers a new observer. The returned cancel is idempotent
// and closes the channel, so range loops over it terminate.
func (b *Broker[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers v to every current subscriber.
func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		for {
			select {
			case ch <- v:
			default:
				// Full: shed the oldest value and retry.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Len reports the current subscriber count.
func (b *Broker[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close terminates every subscription. Further Publish calls are no-ops
// and further Subscribe calls return closed channels.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
