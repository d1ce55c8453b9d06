package state

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Subscription receives every change applied after it was created, in
// mutation order. When its buffer is full the oldest pending change is
// discarded to make room.
type Subscription struct {
	ID string

	ch      chan Change
	dropped atomic.Uint64
	store   *Store
	once    sync.Once
}

// Subscribe registers a new subscriber with the given buffer size.
func (s *Store) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		ID:    uuid.NewString(),
		ch:    make(chan Change, buffer),
		store: s,
	}
	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()
	return sub
}

// C is closed when the subscription is closed.
func (sub *Subscription) C() <-chan Change {
	return sub.ch
}

// Dropped counts changes discarded because the subscriber fell behind.
func (sub *Subscription) Dropped() uint64 {
	return sub.dropped.Load()
}

// Close unregisters the subscription and closes its channel.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		s := sub.store
		s.subsMu.Lock()
		delete(s.subs, sub)
		close(sub.ch)
		s.subsMu.Unlock()
	})
}

// Subscribers returns the number of open subscriptions.
func (s *Store) Subscribers() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}

// publish is called with the mutation admitted, so changes reach each
// subscriber in version order.
func (s *Store) publish(c Change) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for sub := range s.subs {
		sub.deliver(c)
	}
}

func (sub *Subscription) deliver(c Change) {
	for {
		select {
		case sub.ch <- c:
			return
		default:
		}
		select {
		case <-sub.ch:
			sub.dropped.Add(1)
		default:
		}
	}
}
