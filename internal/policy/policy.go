// Package policy implements the Scheduling Policy Module (spec.md §4.7):
// pluggable selection of which traffic class's head task the dispatcher
// assigns next, mirroring the original's naive_tskq_dequeue (pure FIFO)
// and smart_tskq_dequeue (SLO-weighted lateness) strategies.
package policy

import "time"

// ClassQueue is the minimal view a Policy needs of one class's queue: its
// head arrival timestamp, if any. internal/taskq.Queue satisfies this.
type ClassQueue interface {
	PeekHeadTimestamp() (int64, bool)
}

// Policy selects the next class to service. Select returns the chosen
// class index and true, or false if every queue is empty.
type Policy interface {
	Select(queues []ClassQueue, now int64) (class int, ok bool)
}

// FIFO scans class queues in configured order and returns the first
// non-empty one, ignoring per-class SLOs and head timestamps entirely —
// the original's naive_tskq_dequeue, which walks classes 0..num_ports and
// returns on the first hit.
type FIFO struct{}

// Select implements Policy.
func (FIFO) Select(queues []ClassQueue, now int64) (int, bool) {
	for i, q := range queues {
		if _, ok := q.PeekHeadTimestamp(); ok {
			return i, true
		}
	}
	return -1, false
}

// SLOWeighted picks the class whose head task has the greatest lateness
// relative to its configured SLO, where
//
//	lateness = max(0, now - head_ts) / slo[class]
//
// the original's smart_tskq_dequeue. Clamping the numerator to zero before
// dividing absorbs clock skew between the networker's timestamp clock and
// the dispatcher's own clock (spec.md §4.7 edge case): a head timestamp
// that appears to be in the future contributes zero lateness rather than a
// negative one, so it can never win a race it hasn't actually lost.
type SLOWeighted struct {
	// SLO maps class index to its service-level objective. A class with
	// no entry (or a zero/negative value) falls back to DefaultSLO.
	SLO map[int]time.Duration
	// DefaultSLO is used for any class absent from SLO.
	DefaultSLO time.Duration
}

// Select implements Policy.
func (p SLOWeighted) Select(queues []ClassQueue, now int64) (int, bool) {
	best := -1
	var bestLateness float64
	for i, q := range queues {
		ts, ok := q.PeekHeadTimestamp()
		if !ok {
			continue
		}
		diff := now - ts
		if diff < 0 {
			diff = 0
		}
		slo := p.sloFor(i)
		lateness := float64(diff) / float64(slo)
		if best == -1 || lateness > bestLateness {
			best = i
			bestLateness = lateness
		}
	}
	return best, best != -1
}

func (p SLOWeighted) sloFor(class int) time.Duration {
	if slo, ok := p.SLO[class]; ok && slo > 0 {
		return slo
	}
	if p.DefaultSLO > 0 {
		return p.DefaultSLO
	}
	return time.Microsecond
}
