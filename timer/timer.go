package timer

import (
	"sync"
	"time"
)

// Countdown is a one-shot deadline. The callback runs on its own
// goroutine after the duration elapses unless Stop wins the race; the
// owner must revalidate under its own lock before acting, because a
// fire that loses the race to Stop can still be in flight.
type Countdown struct {
	mu       sync.Mutex
	duration time.Duration
	armedAt  time.Time
	timer    *time.Timer
	stopped  bool
}

// NewCountdown arms the countdown immediately.
func NewCountdown(d time.Duration, fn func()) *Countdown {
	c := &Countdown{
		duration: d,
		armedAt:  time.Now(),
	}
	c.timer = time.AfterFunc(d, fn)
	return c
}

// Stop cancels a pending fire. Idempotent; stopping an already-fired
// countdown is a no-op.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	c.timer.Stop()
}

// Remaining reports the time left before the fire, floored at zero. It
// is non-increasing for the lifetime of one arming.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.duration - time.Since(c.armedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
