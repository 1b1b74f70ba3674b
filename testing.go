package udisp

import (
	"sync"

	"github.com/kgriffin/udisp/internal/ctxpool"
	"github.com/kgriffin/udisp/internal/task"
	"github.com/kgriffin/udisp/internal/work"
)

// MockWorkRegistry wraps a work.Registry and records how many times each
// type was invoked, for test assertions — the dispatcher-domain analogue
// of the teacher's call-counting MockBackend.
type MockWorkRegistry struct {
	*work.Registry

	mu    sync.Mutex
	calls map[task.Type]int
}

// NewMockWorkRegistry returns a registry where every canonical type
// completes immediately, echoing its payload back, with no synthetic
// cost spin — useful for dispatcher/worker tests that care about
// scheduling order, not timing.
func NewMockWorkRegistry() *MockWorkRegistry {
	m := &MockWorkRegistry{Registry: work.NewRegistry(), calls: make(map[task.Type]int)}
	for _, typ := range []task.Type{task.Get, task.Scan, task.Put, task.Delete, task.Seek} {
		typ := typ
		m.Registry.Register(typ, func(y ctxpool.Yielder, t task.Task) ([]byte, error) {
			m.record(typ)
			return t.Payload, nil
		})
	}
	return m
}

func (m *MockWorkRegistry) record(typ task.Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[typ]++
}

// CallCount reports how many times typ was invoked.
func (m *MockWorkRegistry) CallCount(typ task.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[typ]
}

// RegisterYielding overrides typ with a function that yields once (via
// Checkpoint) before completing, for exercising the preemption path in
// tests without depending on real timing.
func (m *MockWorkRegistry) RegisterYielding(typ task.Type) {
	m.Registry.Register(typ, func(y ctxpool.Yielder, t task.Task) ([]byte, error) {
		yielded := false
		y.Checkpoint(func() bool {
			if yielded {
				return false
			}
			yielded = true
			return true
		})
		m.record(typ)
		return t.Payload, nil
	})
}
