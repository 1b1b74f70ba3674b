// Package netsim stands in for the Networker → Dispatcher interface
// (spec.md §6): a bounded, single-producer/single-consumer source of
// packet batches. The real system's NIC/UDP receive path is out of scope
// (spec.md §1 Non-goals), so this is an in-memory equivalent feeding the
// dispatcher exactly the same per-packet shape (type, payload, class,
// timestamp) the original's ETH_RX_MAX_BATCH ingest loop produced.
package netsim

import (
	"github.com/kgriffin/udisp/internal/constants"
	"github.com/kgriffin/udisp/internal/task"
)

// Packet is one freshly arrived request, before classification assigns it
// a queue.
type Packet struct {
	Type      task.Type
	Payload   []byte
	Class     int
	Timestamp int64
	Cookie    uint64
}

// Source is a bounded channel of Packets. Producers call Submit; the
// dispatcher calls Drain to pull up to NetworkerBatchMax at a time,
// matching the original's fixed-size rx batch.
type Source struct {
	ch chan Packet
}

// NewSource returns a Source buffering up to capacity packets.
func NewSource(capacity int) *Source {
	return &Source{ch: make(chan Packet, capacity)}
}

// Submit enqueues a packet for later draining. It blocks if the source is
// at capacity, modeling backpressure from a full receive ring.
func (s *Source) Submit(p Packet) {
	s.ch <- p
}

// TrySubmit is the nonblocking variant; it reports false if the source is
// full.
func (s *Source) TrySubmit(p Packet) bool {
	select {
	case s.ch <- p:
		return true
	default:
		return false
	}
}

// Drain pulls up to constants.NetworkerBatchMax packets without blocking,
// returning as many as are immediately available (possibly zero).
func (s *Source) Drain() []Packet {
	batch := make([]Packet, 0, constants.NetworkerBatchMax)
	for len(batch) < constants.NetworkerBatchMax {
		select {
		case p := <-s.ch:
			batch = append(batch, p)
		default:
			return batch
		}
	}
	return batch
}

// Close signals producers are done; further Submit calls will panic, as
// with any send on a closed channel.
func (s *Source) Close() {
	close(s.ch)
}
