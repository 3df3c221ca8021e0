package session

import (
	"sync"
	"time"
)

// Scheduler runs delayed callbacks grouped by key so that every pending
// callback of a session can be cancelled at once.
type Scheduler struct {
	mu    sync.Mutex
	next  uint64
	tasks map[string]map[uint64]*time.Timer
}

func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[string]map[uint64]*time.Timer)}
}

// Schedule runs fn after delay unless the task is cancelled first.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	if s.tasks[key] == nil {
		s.tasks[key] = make(map[uint64]*time.Timer)
	}
	s.tasks[key][id] = time.AfterFunc(delay, func() {
		if !s.claim(key, id) {
			return
		}
		fn()
	})
}

// claim removes the task and reports whether it was still pending.
func (s *Scheduler) claim(key string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, ok := s.tasks[key]
	if !ok {
		return false
	}
	if _, ok := tasks[id]; !ok {
		return false
	}
	delete(tasks, id)
	if len(tasks) == 0 {
		delete(s.tasks, key)
	}
	return true
}

// CancelAll stops every pending task under key and returns how many were
// cancelled.
func (s *Scheduler) CancelAll(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.tasks[key]
	for _, t := range tasks {
		t.Stop()
	}
	delete(s.tasks, key)
	return len(tasks)
}

func (s *Scheduler) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks[key])
}
