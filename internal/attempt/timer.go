package attempt

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock time so tests can drive the timer.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// Timer derives remaining attempt time from the wall-clock start and a fixed
// duration limit rather than counting down locally, so it survives restarts.
// A nil limit means the quiz is untimed and the timer is inert.
type Timer struct {
	clock    Clock
	start    time.Time
	limit    time.Duration // 0 = untimed
	onExpire func()

	mu      sync.Mutex
	expired bool

	stop     chan struct{}
	stopOnce sync.Once
}

// NewTimer creates a timer for an attempt started at start with the given
// limit in minutes. onExpire is invoked exactly once when time runs out.
func NewTimer(clock Clock, start time.Time, limitMinutes *int, onExpire func()) *Timer {
	t := &Timer{
		clock:    clock,
		start:    start,
		onExpire: onExpire,
		stop:     make(chan struct{}),
	}
	if limitMinutes != nil {
		t.limit = time.Duration(*limitMinutes) * time.Minute
	}
	return t
}

// Timed reports whether the attempt has a duration limit.
func (t *Timer) Timed() bool { return t.limit > 0 }

// Remaining returns the time left, clamped to zero. Untimed timers report
// zero; callers must check Timed first.
func (t *Timer) Remaining() time.Duration {
	if !t.Timed() {
		return 0
	}
	left := t.limit - t.clock.Now().Sub(t.start)
	if left < 0 {
		return 0
	}
	return left
}

// RemainingSeconds returns the whole seconds left, or false for untimed
// attempts.
func (t *Timer) RemainingSeconds() (int, bool) {
	if !t.Timed() {
		return 0, false
	}
	return int(t.Remaining() / time.Second), true
}

// Start launches the per-second tick loop. Untimed timers do nothing.
func (t *Timer) Start() {
	if !t.Timed() {
		return
	}
	go t.run()
}

func (t *Timer) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick checks for expiry. The expired latch guarantees onExpire fires at
// most once even if ticks keep arriving after zero.
func (t *Timer) tick() {
	if !t.Timed() || t.Remaining() > 0 {
		return
	}
	t.mu.Lock()
	fire := !t.expired
	t.expired = true
	t.mu.Unlock()
	if fire && t.onExpire != nil {
		t.onExpire()
	}
}

// Stop tears the tick loop down. Safe to call more than once.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
