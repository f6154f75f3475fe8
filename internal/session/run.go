package session

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"seatrush/internal/clock"
)

// RunHandle identifies one armed run and carries its cancellation.
type RunHandle struct {
	ID string

	cancelled atomic.Bool
	done      chan struct{}
	mu        sync.Mutex
	timers    []clock.Timer
}

func newRunHandle() *RunHandle {
	return &RunHandle{ID: uuid.NewString(), done: make(chan struct{})}
}

func (h *RunHandle) addTimer(t clock.Timer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled.Load() {
		t.Stop()
		return
	}
	h.timers = append(h.timers, t)
}

// Cancel stops every timer that has not fired yet and marks the run
// cancelled so in-flight loops wind down. Sessions whose timer already
// fired keep running. Idempotent.
func (h *RunHandle) Cancel() {
	if h.cancelled.Swap(true) {
		return
	}
	h.mu.Lock()
	timers := h.timers
	h.timers = nil
	h.mu.Unlock()
	for _, t := range timers {
		t.Stop()
	}
	close(h.done)
}

// Cancelled reports whether Cancel has been called.
func (h *RunHandle) Cancelled() bool { return h.cancelled.Load() }

// Done is closed when the run is cancelled, for code blocked on a
// timer that Cancel may have stopped.
func (h *RunHandle) Done() <-chan struct{} { return h.done }
