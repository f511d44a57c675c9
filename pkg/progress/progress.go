// Package progress throttles export progress callbacks.
package progress

import (
	"sync"
	"time"

	"github.com/user/runcompare/pkg/ports"
)

// DefaultInterval is the minimum spacing between delivered updates.
const DefaultInterval = 250 * time.Millisecond

// Ceiling is the highest fraction Report delivers. Only Complete reaches 1.0,
// so callers never see a finished export before the output is in place.
const Ceiling = 0.99

// Throttle forwards progress fractions to a callback at a bounded rate.
// Delivered values are clamped to [0, Ceiling] and never decrease. Updates
// arriving within the interval of the last delivery are dropped; the next
// update after the interval carries the newer value. Completion (1.0) is
// delivered exactly once, by Complete.
type Throttle struct {
	mu       sync.Mutex
	fn       ports.ProgressFunc
	interval time.Duration
	now      func() time.Time

	last      time.Time
	value     float64
	delivered bool
	done      bool
}

// NewThrottle wraps fn. A nil fn yields a throttle that drops every update.
func NewThrottle(fn ports.ProgressFunc, interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttle{
		fn:       fn,
		interval: interval,
		now:      time.Now,
	}
}

// Report offers a new fraction.
func (t *Throttle) Report(fraction float64) {
	if fraction != fraction { // NaN
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > Ceiling {
		fraction = Ceiling
	}
	t.deliver(fraction, false)
}

// Complete delivers 1.0 unless it was already delivered.
func (t *Throttle) Complete() {
	t.deliver(1, true)
}

func (t *Throttle) deliver(fraction float64, final bool) {
	t.mu.Lock()
	if t.done || (t.delivered && fraction < t.value) {
		t.mu.Unlock()
		return
	}
	now := t.now()
	if !final && t.delivered && now.Sub(t.last) < t.interval {
		t.mu.Unlock()
		return
	}
	t.value = fraction
	t.last = now
	t.delivered = true
	t.done = final
	fn := t.fn
	t.mu.Unlock()

	if fn != nil {
		fn(fraction)
	}
}

// Func returns Report as a ports.ProgressFunc.
func (t *Throttle) Func() ports.ProgressFunc {
	return t.Report
}

// Span maps a sub-task's [0, 1] progress onto [from, to] of fn.
func Span(fn ports.ProgressFunc, from, to float64) ports.ProgressFunc {
	if fn == nil {
		return func(float64) {}
	}
	return func(fraction float64) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		fn(from + (to-from)*fraction)
	}
}
