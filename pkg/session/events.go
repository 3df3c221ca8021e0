package session

import (
	"sync"
	"time"
)

const (
	EventTick    = "tick"
	EventDate    = "date"
	EventLedger  = "ledger"
	EventExpired = "expired"
	EventClosed  = "closed"
	EventLogout  = "logout"
)

type Event struct {
	Type  string    `json:"type"`
	Timer string    `json:"timer,omitempty"`
	Date  string    `json:"date,omitempty"`
	At    time.Time `json:"at"`
}

// Broadcaster fans session events out to subscribers. Slow subscribers
// miss events instead of blocking the publisher.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of events and a function to unsubscribe.
// The channel is closed when the broadcaster closes.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 16)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if e.At.IsZero() {
		e.At = time.Now()
	}
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close publishes a final event and closes every subscriber channel.
func (b *Broadcaster) Close(final Event) {
	b.Publish(final)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
