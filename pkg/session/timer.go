package session

import (
	"fmt"
	"sync"
	"time"
)

type State int

const (
	Idle State = iota
	Running
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ticker abstracts time.Ticker so tests can drive ticks by hand.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) ticker { return realTicker{time.NewTicker(d)} }

// Timer is the inactivity countdown of a session. Only one ticker goroutine
// is alive at a time: Start and Reset stop the previous one before spawning
// a new one, and a goroutine whose generation is stale never decrements.
type Timer struct {
	mu        sync.Mutex
	budget    int
	remaining int
	state     State
	interval  time.Duration
	gen       uint64
	stop      chan struct{}

	onTick   func(remaining int)
	onExpire func()

	newTicker func(time.Duration) ticker
}

// NewTimer creates an Idle timer. onTick and onExpire may be nil and are
// called without the timer lock held.
func NewTimer(budget int, interval time.Duration, onTick func(int), onExpire func()) *Timer {
	return &Timer{
		budget:    budget,
		remaining: budget,
		interval:  interval,
		onTick:    onTick,
		onExpire:  onExpire,
		newTicker: newRealTicker,
	}
}

// Start moves the timer to Running(budget) and starts ticking.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start()
}

// Reset restarts the countdown. It only has an effect while Running.
func (t *Timer) Reset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Running {
		return false
	}
	t.start()
	return true
}

func (t *Timer) start() {
	t.halt()
	t.remaining = t.budget
	t.state = Running
	t.gen++
	t.stop = make(chan struct{})

	go t.run(t.gen, t.stop, t.newTicker(t.interval))
}

// Stop tears the timer down. No further ticks or expiry happen afterwards.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.halt()
	t.gen++
	if t.state == Running {
		t.state = Idle
	}
}

func (t *Timer) halt() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Timer) run(gen uint64, stop <-chan struct{}, tk ticker) {
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C():
			if !t.tick(gen) {
				return
			}
		}
	}
}

// Tick advances the countdown by one second.
func (t *Timer) Tick() {
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()
	t.tick(gen)
}

// tick returns false once the goroutine for gen should exit.
func (t *Timer) tick(gen uint64) bool {
	t.mu.Lock()
	if gen != t.gen || t.state != Running {
		t.mu.Unlock()
		return false
	}

	if t.remaining > 0 {
		t.remaining--
	}
	remaining := t.remaining
	expired := remaining == 0
	if expired {
		t.state = Expired
		t.halt()
	}
	onTick, onExpire := t.onTick, t.onExpire
	t.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expired && onExpire != nil {
		onExpire()
	}
	return !expired
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Display renders the remaining time as MM:SS.
func (t *Timer) Display() string {
	return Countdown(t.Remaining())
}

func Countdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
