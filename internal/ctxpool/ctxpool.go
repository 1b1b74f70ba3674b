// Package ctxpool implements the Context Pool (spec.md §4.3): bounded
// allocation of suspendable execution contexts. Each Context is a
// goroutine parked on channels — Go's native stackful-coroutine primitive —
// standing in for the original per-request ucontext_t plus fixed stack
// buffer; a goroutine's own stack grows and shrinks on demand, so no
// STACK_CAPACITY/STACK_SIZE bookkeeping is needed.
package ctxpool

import (
	stdcontext "context"
	"sync/atomic"

	"github.com/kgriffin/udisp/internal/task"
)

var nextID atomic.Uint64

// EventKind distinguishes why a Context's goroutine handed control back to
// its owner.
type EventKind uint8

const (
	// EventFinished means the work function returned; the Context is done
	// and its slot should be released back to the Pool.
	EventFinished EventKind = iota
	// EventYielded means the work function hit a Checkpoint while
	// preemption was requested; the Context is suspended mid-flight and
	// must eventually be Resumed or abandoned.
	EventYielded
)

// Event is delivered on a Context's event channel.
type Event struct {
	Kind   EventKind
	Output []byte
	Err    error
}

// Yielder lets a work function cooperate with preemption without either
// side depending on the other's concrete type. internal/preempt supplies
// the shouldYield predicate; internal/ctxpool supplies the suspend point.
type Yielder interface {
	// Checkpoint blocks the calling goroutine — suspending the in-flight
	// context at exactly this call site — if and only if shouldYield
	// reports true. It returns once the context has been resumed.
	Checkpoint(shouldYield func() bool)
}

// WorkFunc is a registered operation body (see internal/work). It must
// consult the Yielder at the checkpoint granularity its deployment's
// preemption mode expects; a cooperative deployment that never calls
// Checkpoint cannot be preempted.
type WorkFunc func(y Yielder, t task.Task) ([]byte, error)

// Context is one suspendable execution.
type Context struct {
	id       uint64
	resumeCh chan task.Task
	eventCh  chan Event
}

// ID implements task.Runnable.
func (c *Context) ID() uint64 { return c.id }

func newContext() *Context {
	return &Context{
		id:       nextID.Add(1),
		resumeCh: make(chan task.Task),
		eventCh:  make(chan Event, 1),
	}
}

// Start launches the goroutine that runs fn against t. It must be called
// exactly once per Context, by the goroutine that owns the Context (the
// worker loop), before the first receive on Events.
func (c *Context) Start(fn WorkFunc, t task.Task) {
	go func() {
		out, err := fn(c, t)
		c.eventCh <- Event{Kind: EventFinished, Output: out, Err: err}
	}()
}

// Checkpoint implements Yielder. It runs on the Context's own goroutine,
// inside the work function.
func (c *Context) Checkpoint(shouldYield func() bool) {
	if !shouldYield() {
		return
	}
	c.eventCh <- Event{Kind: EventYielded}
	<-c.resumeCh
}

// Events is the channel a worker selects on to learn whether the running
// Context finished or yielded.
func (c *Context) Events() <-chan Event { return c.eventCh }

// Resume wakes a yielded Context's goroutine so it continues past its
// Checkpoint call and resumes running the rest of the work function. t
// carries any request state the resumption needs; most work functions
// ignore it and rely on closures captured at Start time.
func (c *Context) Resume(t task.Task) {
	c.resumeCh <- t
}

// Pool bounds the number of concurrently in-flight Contexts, matching the
// fixed CONTEXT_CAPACITY of the original context pool.
type Pool struct {
	sem chan struct{}
}

// NewPool returns a Pool admitting at most maxInFlight concurrently
// in-flight Contexts.
func NewPool(maxInFlight int) *Pool {
	return &Pool{sem: make(chan struct{}, maxInFlight)}
}

// Acquire blocks until a slot is free (or ctx is done) and returns a fresh
// Context occupying it. The caller must eventually call Release exactly
// once for every successful Acquire, when the Context finishes (not when
// it merely yields — a yielded Context still holds its slot).
func (p *Pool) Acquire(ctx stdcontext.Context) (*Context, error) {
	select {
	case p.sem <- struct{}{}:
		return newContext(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire attempts to take a slot without blocking, reporting false if
// the pool is already at capacity. The fresh-packet path uses this instead
// of Acquire: spec.md §4.3 requires dropping the packet with a diagnostic
// on exhaustion, never waiting for one to free (a resumed context is
// never dropped, but it never calls Acquire/TryAcquire either — it
// already holds its slot).
func (p *Pool) TryAcquire() (*Context, bool) {
	select {
	case p.sem <- struct{}{}:
		return newContext(), true
	default:
		return nil, false
	}
}

// Release returns one occupied slot to the pool.
func (p *Pool) Release() {
	select {
	case <-p.sem:
	default:
	}
}

// InFlight reports the current number of occupied slots.
func (p *Pool) InFlight() int { return len(p.sem) }

// Capacity reports the pool's fixed slot count.
func (p *Pool) Capacity() int { return cap(p.sem) }
