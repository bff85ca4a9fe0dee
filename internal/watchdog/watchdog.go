// Package watchdog provides a one-shot, resettable liveness timer.
package watchdog

import (
	"sync"
	"time"
)

// Watchdog calls a trigger when Reset has not been called for a full
// timeout. It fires at most once per Reset.
//
// Each Reset bumps a generation counter. A timer callback that finds a
// newer generation, or a stopped watchdog, returns without calling the
// trigger. The trigger runs outside the watchdog's lock, so a fire can
// still race with a concurrent Reset; callers that serialise Reset under
// their own lock should check Armed under that lock before acting.
type Watchdog struct {
	timeout time.Duration
	trigger func()

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	armed      bool
}

// New creates a disarmed watchdog.
func New(timeout time.Duration, trigger func()) *Watchdog {
	return &Watchdog{timeout: timeout, trigger: trigger}
}

// Timeout returns the configured timeout.
func (w *Watchdog) Timeout() time.Duration { return w.timeout }

// Reset cancels any pending fire and arms the watchdog for a full timeout.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.generation++
	w.armed = true
	gen := w.generation
	w.timer = time.AfterFunc(w.timeout, func() { w.fire(gen) })
}

// Stop disarms the watchdog. A pending fire becomes a no-op.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.generation++
	w.armed = false
}

// Armed reports whether a fire is pending.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.generation || !w.armed {
		w.mu.Unlock()
		return
	}
	w.armed = false
	w.timer = nil
	w.mu.Unlock()

	if w.trigger != nil {
		w.trigger()
	}
}
