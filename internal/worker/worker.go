// Package worker implements the Worker Loop (spec.md §4.6): one goroutine
// per worker, pinned to its own OS thread the way the original pinned one
// pthread per dune_vm, observing its request slot, running or resuming the
// request against the work-function registry, and publishing the result
// to its response slot for the dispatcher to reclaim.
package worker

import (
	stdcontext "context"
	"errors"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/kgriffin/udisp/internal/ctxpool"
	"github.com/kgriffin/udisp/internal/errs"
	"github.com/kgriffin/udisp/internal/logging"
	"github.com/kgriffin/udisp/internal/preempt"
	"github.com/kgriffin/udisp/internal/slot"
	"github.com/kgriffin/udisp/internal/task"
	"github.com/kgriffin/udisp/internal/work"
)

// Worker drives one SPSC slot pair against a shared Context pool and work
// registry, on its own goroutine.
type Worker struct {
	ID         int
	Pair       *slot.Pair
	Preempt    *preempt.Channel
	Pool       *ctxpool.Pool
	Registry   *work.Registry
	Logger     *logging.Logger
	CPU        int  // target CPU index, -1 for no affinity
	cpuAssign  bool // whether CPU is meaningful
}

// NewWorker returns a Worker with no CPU affinity configured.
func NewWorker(id int, pair *slot.Pair, pc *preempt.Channel, pool *ctxpool.Pool, reg *work.Registry, logger *logging.Logger) *Worker {
	return &Worker{ID: id, Pair: pair, Preempt: pc, Pool: pool, Registry: reg, Logger: logger, CPU: -1}
}

// WithCPU pins the worker's goroutine to the given CPU index once its Run
// loop starts, mirroring the original's per-queue pthread affinity.
func (w *Worker) WithCPU(cpu int) *Worker {
	w.CPU = cpu
	w.cpuAssign = true
	return w
}

// Run drives the worker loop until ctx is cancelled or an unrecoverable
// protocol error is observed on the request slot. It never returns nil on
// the happy path: the loop is meant to run for the process lifetime.
func (w *Worker) Run(ctx stdcontext.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if w.cpuAssign && w.CPU >= 0 {
		setAffinity(w.CPU, w.Logger, w.ID)
	}
	w.Preempt.BindWorkerThread(currentThreadID())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// An armed preempt flag observed here, before the next request has
		// even been picked up, cannot belong to a task this worker is
		// running: Fire is only ever called by the dispatcher against a
		// worker it believes is ACTIVE. Seeing it armed while idle means
		// the budget check raced the previous task's completion; disarm it
		// and move on rather than let it bleed into the next assignment.
		if w.Preempt.Armed() {
			if w.Logger != nil {
				w.Logger.Warnf("worker %d: %v", w.ID, errs.NewWorker("preempt", w.ID, errs.CodeSpuriousPreempt, "preempt armed while idle"))
			}
			w.Preempt.Disarm()
		}

		// ObserveRequest's own spin never looks at ctx, so wait for the
		// next request here, where an idle worker can still see cancellation.
		for w.Pair.Request.IsWaiting() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		t, err := w.Pair.Request.ObserveRequest(w.ID)
		if err != nil {
			var perr *slot.ProtocolError
			if errors.As(err, &perr) {
				if w.Logger != nil {
					w.Logger.Errorf("worker %d: fatal protocol violation: %v", w.ID, perr)
				}
			}
			return err
		}

		w.Pair.Response.MarkRunning()

		var rctx *ctxpool.Context
		if t.Category == task.Context {
			rctx, _ = t.Runnable.(*ctxpool.Context)
			rctx.Resume(t)
		} else {
			// The dispatcher's classify step (internal/dispatch.ingest) drops
			// any packet whose type is not in the registry before it ever
			// reaches a request slot, so this should be unreachable. Treat it
			// as the fatal protocol violation it would be if it somehow
			// happened rather than fabricating a completion for it.
			fn, ok := w.Registry.Lookup(t.Type)
			if !ok {
				return &work.ErrUnregistered{Type: t.Type}
			}

			rctx, ok = w.Pool.TryAcquire()
			if !ok {
				if w.Logger != nil {
					w.Logger.Warnf("worker %d: %v", w.ID, errs.NewWorker("pool-acquire", w.ID, errs.CodePoolExhausted, "context pool exhausted, dropping packet"))
				}
				w.Pair.Response.PublishResponse(t, slot.Dropped)
				continue
			}
			rctx.Start(fn, t)
		}

		select {
		case ev := <-rctx.Events():
			switch ev.Kind {
			case ctxpool.EventFinished:
				w.Pool.Release()
				done := t
				done.Payload = ev.Output
				done.Runnable = nil
				w.Pair.Response.PublishResponse(done, slot.Finished)
			case ctxpool.EventYielded:
				suspended := t
				suspended.Runnable = rctx
				w.Pair.Response.PublishResponse(suspended, slot.Preempted)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func setAffinity(cpu int, logger *logging.Logger, workerID int) {
	var mask unix.CPUSet
	mask.Set(cpu)
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		if logger != nil {
			logger.Warnf("worker %d: failed to set CPU affinity to %d: %v", workerID, cpu, err)
		}
	}
}
