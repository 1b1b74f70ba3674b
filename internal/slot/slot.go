// Package slot implements the SPSC Slot Pair (spec.md §4.1, §3): a
// cache-line-padded, lock-free rendezvous between the dispatcher and one
// worker. Two slots exist per worker — a request slot (dispatcher→worker)
// and a response slot (worker→dispatcher) — and their flag words form a
// strict two-party rendezvous whose transitions alternate
// dispatcher→worker→dispatcher.
package slot

import (
	"fmt"
	"sync/atomic"

	"github.com/kgriffin/udisp/internal/task"
)

// RequestFlag is the state of a Request slot.
type RequestFlag uint32

const (
	Waiting RequestFlag = iota
	Active
)

func (f RequestFlag) String() string {
	if f == Active {
		return "ACTIVE"
	}
	return "WAITING"
}

// ResponseFlag is the state of a Response slot.
type ResponseFlag uint32

const (
	Running ResponseFlag = iota
	Finished
	Preempted
	Processed
	// Dropped marks a fresh packet the worker could not run (e.g. context
	// pool exhaustion) and is discarding rather than completing. Like
	// Finished and Preempted it is terminal and reclaimable, but the
	// dispatcher must not forward it to the Sender: a dropped packet
	// produces no response datagram (spec.md §7).
	Dropped
)

func (f ResponseFlag) String() string {
	switch f {
	case Finished:
		return "FINISHED"
	case Preempted:
		return "PREEMPTED"
	case Processed:
		return "PROCESSED"
	case Dropped:
		return "DROPPED"
	default:
		return "RUNNING"
	}
}

// cacheLineSize sizes the padding so a Request/Response pair does not
// false-share a cache line with its neighbors in the per-worker slot array,
// mirroring the original's packed, 64-byte-aligned
// worker_response/dispatcher_request structs.
const cacheLineSize = 64

// Request is the dispatcher→worker slot. The dispatcher writes all
// payload fields first and transitions flag to Active last (release); it
// never mutates the slot again until it has observed flag == Waiting.
type Request struct {
	flag      atomic.Uint32 // RequestFlag
	runnable  task.Runnable
	payload   []byte
	typ       task.Type
	category  task.Category
	class     int
	timestamp int64
	cookie    uint64

	_ [cacheLineSize]byte // padding against false sharing
}

// ProtocolError is returned when a slot flag is observed outside its
// documented domain: per spec.md §7 this is a fatal protocol violation.
type ProtocolError struct {
	Worker int
	Slot   string
	Value  uint32
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("slot: worker %d: %s flag out of domain: %d", e.Worker, e.Slot, e.Value)
}

// PublishRequest fills the payload fields then releases the slot to the
// worker. Precondition: flag must currently be Waiting; violating this is
// a caller bug (the dispatcher must only assign to workers it has found
// Waiting).
func (r *Request) PublishRequest(t task.Task) {
	r.runnable = t.Runnable
	r.payload = t.Payload
	r.typ = t.Type
	r.category = t.Category
	r.class = t.Class
	r.timestamp = t.Timestamp
	r.cookie = t.Cookie
	r.flag.Store(uint32(Active))
}

// IsWaiting is a nonblocking check used by the dispatcher's assignment
// step to find an idle worker without spinning.
func (r *Request) IsWaiting() bool {
	return RequestFlag(r.flag.Load()) == Waiting
}

// ObserveRequest is the worker-side spin-wait: block until the slot is
// Active, take the payload, and release the slot back to Waiting.
func (r *Request) ObserveRequest(workerID int) (task.Task, error) {
	for {
		f := RequestFlag(r.flag.Load())
		switch f {
		case Active:
			t := task.Task{
				Runnable:  r.runnable,
				Payload:   r.payload,
				Type:      r.typ,
				Category:  r.category,
				Class:     r.class,
				Timestamp: r.timestamp,
				Cookie:    r.cookie,
			}
			r.runnable = nil
			r.payload = nil
			r.flag.Store(uint32(Waiting))
			return t, nil
		case Waiting:
			// spin
		default:
			return task.Task{}, &ProtocolError{Worker: workerID, Slot: "request", Value: uint32(f)}
		}
	}
}

// Response is the worker→dispatcher slot. The worker writes all payload
// fields before transitioning flag away from Processed.
type Response struct {
	flag      atomic.Uint32 // ResponseFlag
	runnable  task.Runnable
	payload   []byte
	typ       task.Type
	class     int
	timestamp int64
	cookie    uint64

	_ [cacheLineSize]byte
}

// NewResponse returns a Response slot initialized to Processed, the
// dispatcher-owned idle state.
func NewResponse() *Response {
	r := &Response{}
	r.flag.Store(uint32(Processed))
	return r
}

// PublishResponse is called by the worker on completion, preemption, or
// drop. It writes the echoed payload fields and the possibly-updated
// runnable, and transitions flag to a terminal state. The slot stores no
// category: ReclaimResponse always hands the record back as Context (a
// preempted or finished task always carries its continuation, even if that
// continuation is "none" for Finished or Dropped).
func (r *Response) PublishResponse(t task.Task, final ResponseFlag) {
	if final != Finished && final != Preempted && final != Dropped {
		panic("slot: PublishResponse requires Finished, Preempted, or Dropped")
	}
	r.runnable = t.Runnable
	r.payload = t.Payload
	r.typ = t.Type
	r.class = t.Class
	r.timestamp = t.Timestamp
	r.cookie = t.Cookie
	r.flag.Store(uint32(final))
}

// MarkRunning lets a worker advertise that it has begun executing a
// request, primarily for observability (budget-check diagnostics); it is
// not part of the two-party handoff protocol.
func (r *Response) MarkRunning() {
	r.flag.Store(uint32(Running))
}

// ReclaimResponse is the dispatcher-side nonblocking check: if the flag is
// a terminal state (Finished, Preempted, or Dropped), take the record and
// reset the slot to Processed.
func (r *Response) ReclaimResponse(workerID int) (task.Task, ResponseFlag, bool, error) {
	f := ResponseFlag(r.flag.Load())
	switch f {
	case Finished, Preempted, Dropped:
		t := task.Task{
			Runnable:  r.runnable,
			Payload:   r.payload,
			Type:      r.typ,
			Category:  task.Context,
			Class:     r.class,
			Timestamp: r.timestamp,
			Cookie:    r.cookie,
		}
		r.runnable = nil
		r.payload = nil
		r.flag.Store(uint32(Processed))
		return t, f, true, nil
	case Processed, Running:
		return task.Task{}, f, false, nil
	default:
		return task.Task{}, f, false, &ProtocolError{Worker: workerID, Slot: "response", Value: uint32(f)}
	}
}

// Pair bundles one worker's request and response slots.
type Pair struct {
	Request  Request
	Response *Response
}

// NewPair returns a freshly initialized slot pair for one worker: request
// Waiting, response Processed.
func NewPair() *Pair {
	return &Pair{Response: NewResponse()}
}
