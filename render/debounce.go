package render

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a resize or zoom burst settles.
const DefaultDebounce = 100 * time.Millisecond

// Debouncer collapses a burst of triggers into one callback invocation after
// the burst goes quiet. Resize and zoom storms are controlled here, at the
// trigger, rather than by limiting worker runtime.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	fn      func()
	stopped bool
}

// NewDebouncer returns a debouncer firing fn delay after the last Trigger.
// A non-positive delay uses DefaultDebounce.
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (re)arms the timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Stop cancels any pending callback. Further triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
