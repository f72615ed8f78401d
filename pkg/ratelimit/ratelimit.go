// Package ratelimit implements a fixed-window call counter used to protect
// free-tier provider quotas. The window resets lazily the first time it is
// observed to be stale, never eagerly on a timer.
package ratelimit

import (
	"sync"
	"time"
)

// Window counts calls inside a fixed time window. Safe for concurrent use.
//
// Acquisition and accounting are split on purpose: TryAcquire reports whether
// a call may be dispatched without charging the quota, and RecordCall charges
// it only once the call has actually gone out. Cache hits therefore never
// consume quota.
type Window struct {
	mu             sync.Mutex
	windowStart    time.Time
	callCount      int
	maxCalls       int
	windowDuration time.Duration
	now            func() time.Time
}

// NewWindow creates a limiter allowing maxCalls per windowDuration.
func NewWindow(maxCalls int, windowDuration time.Duration) *Window {
	if maxCalls < 1 {
		maxCalls = 1
	}
	if windowDuration <= 0 {
		windowDuration = time.Second
	}
	w := &Window{
		maxCalls:       maxCalls,
		windowDuration: windowDuration,
		now:            time.Now,
	}
	w.windowStart = w.now()
	return w
}

// refresh resets a stale window. Caller must hold the lock.
func (w *Window) refresh() {
	if now := w.now(); now.Sub(w.windowStart) >= w.windowDuration {
		w.windowStart = now
		w.callCount = 0
	}
}

// TryAcquire reports whether a call may be dispatched in the current window.
// It does not increment the counter.
func (w *Window) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refresh()
	return w.callCount < w.maxCalls
}

// RecordCall charges one call against the window. Invoke only after a call
// has actually been dispatched upstream, not merely attempted.
func (w *Window) RecordCall() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refresh()
	w.callCount++
}

// Remaining reports how many calls are left in the current window.
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refresh()
	if left := w.maxCalls - w.callCount; left > 0 {
		return left
	}
	return 0
}
