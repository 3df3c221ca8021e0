// Package session holds the per-login state: the inactivity timer, the
// delayed task scheduler, the date refresher and the event stream.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID        string
	Username  string
	StartedAt time.Time
	Sorted    bool

	Timer  *Timer
	Events *Broadcaster

	stopRefresh func()
}

// New creates a session with an Idle timer. onExpire receives the session
// so callers can check it is still the current one.
func New(username string, budget int, interval time.Duration, onExpire func(*Session)) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		StartedAt: time.Now(),
		Events:    NewBroadcaster(),
	}
	s.Timer = NewTimer(budget, interval,
		func(remaining int) {
			s.Events.Publish(Event{Type: EventTick, Timer: Countdown(remaining)})
		},
		func() {
			if onExpire != nil {
				onExpire(s)
			}
		},
	)
	return s
}

// StartRefresh calls fn every interval until the session ends.
func (s *Session) StartRefresh(interval time.Duration, fn func()) {
	if s.stopRefresh != nil {
		s.stopRefresh()
	}
	s.stopRefresh = Every(interval, fn)
}

// End stops the timer and the refresher and closes the event stream.
func (s *Session) End(reason string) {
	s.Timer.Stop()
	if s.stopRefresh != nil {
		s.stopRefresh()
		s.stopRefresh = nil
	}
	s.Events.Close(Event{Type: reason})
}

// Every runs fn on a ticker until the returned stop function is called.
func Every(interval time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
