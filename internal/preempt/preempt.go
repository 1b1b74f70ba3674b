// Package preempt implements the Preemption Channel (spec.md §4.4): the
// mechanism by which a dispatcher asks a worker's currently running
// Context to suspend at its next checkpoint. Three modes are supported —
// NONE, COOPERATIVE, and INTERRUPT — mirroring the original's
// concord_disable/concord_enable gate and PREEMPT_VECTOR signal handler.
package preempt

import (
	"sync/atomic"
)

// Mode selects how a Channel asks a worker to yield.
type Mode uint8

const (
	// None disables preemption entirely; ShouldYield always reports false
	// and Fire is a no-op. Budgets are advisory only.
	None Mode = iota
	// Cooperative sets a shared flag a work function polls via its
	// Yielder.Checkpoint call; no asynchronous signal is sent.
	Cooperative
	// Interrupt additionally attempts real, best-effort asynchronous
	// delivery (see internal/preempt/signal_linux.go) on top of the same
	// flag, so a worker whose work function checks rarely is still woken
	// promptly on platforms that support it.
	Interrupt
)

func (m Mode) String() string {
	switch m {
	case Cooperative:
		return "COOPERATIVE"
	case Interrupt:
		return "INTERRUPT"
	default:
		return "NONE"
	}
}

// Channel is armed by the dispatcher for one worker and polled by that
// worker's running Context via ShouldYield.
type Channel struct {
	mode Mode

	// armed is set by Fire and cleared when the worker observes it via
	// ShouldYield; a fresh worker begins disarmed.
	armed atomic.Bool

	// disableDepth implements the original's reference-counted
	// concord_disable/concord_enable gate: while > 0, ShouldYield always
	// reports false regardless of armed, so a worker can protect a critical
	// section (e.g. committing a response) from being preempted mid-write.
	disableDepth atomic.Int32

	// notify, when non-nil, is signaled by Fire in Interrupt mode; a
	// worker's run loop may select on it to wake promptly instead of
	// relying solely on the work function's own checkpoint cadence.
	notify func()

	// tid is the OS thread id of the worker this channel arms, set once by
	// the worker after runtime.LockOSThread. Zero means unset, in which
	// case Interrupt mode falls back to Cooperative's polling cadence.
	tid atomic.Int32
}

// BindWorkerThread records the OS thread id a worker is locked to, so
// Fire can target it with signalWorker in Interrupt mode. Must be called
// from the worker's own goroutine after runtime.LockOSThread.
func (c *Channel) BindWorkerThread(tid int) {
	c.tid.Store(int32(tid))
}

// New returns a disarmed Channel in the given mode. notify may be nil; if
// supplied it is invoked (non-blocking, from the dispatcher's goroutine)
// every time Fire succeeds in Interrupt mode.
func New(mode Mode, notify func()) *Channel {
	return &Channel{mode: mode, notify: notify}
}

// Mode reports the channel's configured mode.
func (c *Channel) Mode() Mode { return c.mode }

// Fire requests that the worker's current Context yield at its next
// checkpoint. It is idempotent: firing an already-armed channel is a
// no-op. In None mode it does nothing.
func (c *Channel) Fire() {
	if c.mode == None {
		return
	}
	if !c.armed.CompareAndSwap(false, true) {
		return
	}
	if c.mode != Interrupt {
		return
	}
	if c.notify != nil {
		c.notify()
	}
	if tid := c.tid.Load(); tid != 0 {
		signalWorker(int(tid))
	}
}

// Disarm clears a pending Fire without the worker having observed it;
// used when the dispatcher learns the request already finished on its
// own (a benign race between completion and preemption).
func (c *Channel) Disarm() {
	c.armed.Store(false)
}

// Disable increments the preemption gate's depth; while depth > 0,
// ShouldYield reports false unconditionally. Mirrors concord_disable.
func (c *Channel) Disable() {
	c.disableDepth.Add(1)
}

// Enable decrements the preemption gate's depth. Mirrors concord_enable.
// Calling Enable without a matching prior Disable is a caller bug (the
// depth may go negative, and a later Disable then leaves it at or below
// zero, so ShouldYield is not suppressed until balanced); callers must pair
// every Disable with exactly one Enable.
func (c *Channel) Enable() {
	c.disableDepth.Add(-1)
}

// ShouldYield is the predicate a Context's Checkpoint call evaluates. It
// clears the armed flag on a true observation: once a work function has
// been told to yield, the request is satisfied and must be re-armed by a
// fresh Fire for a subsequent preemption.
func (c *Channel) ShouldYield() bool {
	if c.mode == None {
		return false
	}
	if c.disableDepth.Load() > 0 {
		return false
	}
	return c.armed.CompareAndSwap(true, false)
}

// Armed reports whether a Fire is currently pending, for diagnostics.
func (c *Channel) Armed() bool {
	return c.armed.Load()
}
