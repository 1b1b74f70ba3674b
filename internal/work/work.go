// Package work holds the registry of operation bodies the worker loop
// invokes, standing in for the original's do_db_generic_work switch over
// DB_GET/DB_PUT/DB_DELETE/DB_ITERATOR/DB_SEEK. Each registered function is
// a ctxpool.WorkFunc so it can be started on, and suspend, a Context.
package work

import (
	"fmt"
	"time"

	"github.com/kgriffin/udisp/internal/constants"
	"github.com/kgriffin/udisp/internal/ctxpool"
	"github.com/kgriffin/udisp/internal/task"
)

// Registry maps a task.Type to the function that executes it.
type Registry struct {
	fns map[task.Type]ctxpool.WorkFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[task.Type]ctxpool.WorkFunc)}
}

// Register binds fn to typ, overwriting any previous binding.
func (r *Registry) Register(typ task.Type, fn ctxpool.WorkFunc) {
	r.fns[typ] = fn
}

// Lookup returns the function bound to typ, if any.
func (r *Registry) Lookup(typ task.Type) (ctxpool.WorkFunc, bool) {
	fn, ok := r.fns[typ]
	return fn, ok
}

// Has reports whether typ has a bound work function, without returning it.
// The dispatcher's classify step uses this to drop unknown-type packets
// before they ever reach a request slot.
func (r *Registry) Has(typ task.Type) bool {
	_, ok := r.fns[typ]
	return ok
}

// spin busy-waits for approximately d, checkpointing every
// constants.CooperativeCheckpointInterval so a cooperative-mode caller can
// be preempted mid-operation, the same way the original's generic_work
// spun for a fixed cycle count while polling concord_lock_counter-gated
// preemption.
func spin(y ctxpool.Yielder, shouldYield func() bool, d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		y.Checkpoint(shouldYield)
		time.Sleep(constants.CooperativeCheckpointInterval)
	}
}

// NewDefaultRegistry returns a Registry with the five canonical TPCC-style
// operations bound to the cost constants in internal/constants, each
// checkpointing at CooperativeCheckpointInterval granularity. shouldYield
// is typically an internal/preempt.Channel's ShouldYield method.
func NewDefaultRegistry(shouldYield func() bool) *Registry {
	r := NewRegistry()
	r.Register(task.Get, func(y ctxpool.Yielder, t task.Task) ([]byte, error) {
		spin(y, shouldYield, constants.DefaultGetCostNs*time.Nanosecond)
		return t.Payload, nil
	})
	r.Register(task.Scan, func(y ctxpool.Yielder, t task.Task) ([]byte, error) {
		spin(y, shouldYield, constants.DefaultLongScanNs*time.Nanosecond)
		return t.Payload, nil
	})
	r.Register(task.Put, func(y ctxpool.Yielder, t task.Task) ([]byte, error) {
		spin(y, shouldYield, constants.DefaultPutCostNs*time.Nanosecond)
		return nil, nil
	})
	r.Register(task.Delete, func(y ctxpool.Yielder, t task.Task) ([]byte, error) {
		spin(y, shouldYield, constants.DefaultDeleteCostNs*time.Nanosecond)
		return nil, nil
	})
	r.Register(task.Seek, func(y ctxpool.Yielder, t task.Task) ([]byte, error) {
		spin(y, shouldYield, constants.DefaultSeekCostNs*time.Nanosecond)
		return t.Payload, nil
	})
	return r
}

// ErrUnregistered is returned by a worker loop that dequeues a packet of
// a type with no bound work function.
type ErrUnregistered struct {
	Type task.Type
}

func (e *ErrUnregistered) Error() string {
	return fmt.Sprintf("work: no function registered for type %s", e.Type)
}
