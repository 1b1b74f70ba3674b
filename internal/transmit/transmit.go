// Package transmit stands in for the original's udp_send response path
// (spec.md §6), out of scope as a real socket per spec.md §1 Non-goals.
// Sender is the seam: RecordingSender is used by tests and cmd/udispbench
// to observe completed responses; UDPSender documents where a real
// transport would be wired in.
package transmit

import (
	"fmt"
	"sync"

	"github.com/kgriffin/udisp/internal/task"
)

// Response is a completed task ready to leave the system.
type Response struct {
	Cookie    uint64
	Class     int
	Type      task.Type
	Payload   []byte
	Timestamp int64
}

// Sender delivers a finished Response to its originator.
type Sender interface {
	Send(r Response) error
}

// RecordingSender accumulates every Response it is given, in delivery
// order, for test assertions.
type RecordingSender struct {
	mu   sync.Mutex
	sent []Response
}

// NewRecordingSender returns an empty RecordingSender.
func NewRecordingSender() *RecordingSender {
	return &RecordingSender{}
}

// Send implements Sender.
func (s *RecordingSender) Send(r Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, r)
	return nil
}

// Sent returns a copy of every Response recorded so far.
func (s *RecordingSender) Sent() []Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Response, len(s.sent))
	copy(out, s.sent)
	return out
}

// UDPSender is the documented integration point for a real socket-backed
// transport; it is unimplemented because the NIC/UDP send path is out of
// scope (spec.md §1 Non-goals). Its Send always fails so a deployment
// cannot silently no-op responses.
type UDPSender struct {
	Addr string
}

// Send implements Sender by always failing: wiring a real UDP socket here
// would cross the out-of-scope transport boundary.
func (s *UDPSender) Send(r Response) error {
	return fmt.Errorf("transmit: UDPSender is a documented stub, not a real transport (addr=%s)", s.Addr)
}
