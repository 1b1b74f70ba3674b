// Package dispatch implements the Dispatcher Loop (spec.md §4.5): the
// single goroutine that drains worker completions, ingests fresh packets,
// classifies and enqueues them, selects the next task per worker via the
// configured Scheduling Policy, and fires preemption when a worker
// exceeds its class budget. It is the direct analogue of the original
// do_work dispatcher half running on the control core.
package dispatch

import (
	stdcontext "context"
	"time"

	"github.com/kgriffin/udisp/internal/errs"
	"github.com/kgriffin/udisp/internal/logging"
	"github.com/kgriffin/udisp/internal/netsim"
	"github.com/kgriffin/udisp/internal/policy"
	"github.com/kgriffin/udisp/internal/preempt"
	"github.com/kgriffin/udisp/internal/slot"
	"github.com/kgriffin/udisp/internal/task"
	"github.com/kgriffin/udisp/internal/taskq"
	"github.com/kgriffin/udisp/internal/transmit"
	"github.com/kgriffin/udisp/internal/work"
)

// Observer lets a caller watch dispatcher-level events (assignment,
// preemption, completion) for metrics, matching the Observer-interface
// pattern used throughout the rest of this stack.
type Observer interface {
	ObserveAssign(worker, class int)
	ObserveComplete(worker, class int, latencyNs uint64)
	ObservePreempt(worker, class int)
	ObserveQueueDepth(class, depth int)
	ObserveSendError(worker, class int)
	// ObserveEnqueue is called once per packet accepted into a class queue
	// at ingest, before it is ever assigned to a worker.
	ObserveEnqueue(class int)
	// ObserveDrop is called once per packet discarded without producing a
	// response: an unknown type at classify, or a context-pool exhaustion
	// drop reclaimed from a worker's response slot.
	ObserveDrop(class int)
}

// NoOpObserver implements Observer with no side effects.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAssign(int, int)           {}
func (NoOpObserver) ObserveComplete(int, int, uint64) {}
func (NoOpObserver) ObservePreempt(int, int)          {}
func (NoOpObserver) ObserveQueueDepth(int, int)       {}
func (NoOpObserver) ObserveSendError(int, int)        {}
func (NoOpObserver) ObserveEnqueue(int)               {}
func (NoOpObserver) ObserveDrop(int)                  {}

// Config configures a Dispatcher.
type Config struct {
	NumWorkers int
	NumClasses int
	Policy     policy.Policy
	Source     *netsim.Source
	Sender     transmit.Sender
	// Registry is consulted at the classify step of ingest: a packet whose
	// type is not in Registry is dropped and logged rather than enqueued.
	// A nil Registry disables classification (every type is accepted).
	Registry *work.Registry
	// Budget maps class to its preemption budget; a class absent from the
	// map uses DefaultBudget.
	Budget        map[int]time.Duration
	DefaultBudget time.Duration
	PreemptMode   preempt.Mode
	Logger        *logging.Logger
	Observer      Observer
	// IdlePoll is how long the loop sleeps when it finds no completions,
	// no fresh packets, and no idle worker to assign — avoiding a pure
	// spin when the system is quiescent.
	IdlePoll time.Duration
	// StopAfterPackets, if positive, stops Run once this many packets have
	// been ingested, mirroring the original's BENCHMARK_STOP_AT_PACKET.
	StopAfterPackets uint64
	// StopAfterDuration, if positive, stops Run once this long has elapsed
	// since the first call to Run, mirroring BENCHMARK_DURATION_US.
	StopAfterDuration time.Duration
}

// Dispatcher owns one SPSC slot pair and one Preemption Channel per
// worker, and one Task Queue per class.
type Dispatcher struct {
	cfg Config

	pairs    []*slot.Pair
	preempts []*preempt.Channel
	queues   []*taskq.Queue

	runningClass []int
	runningSince []int64

	// packetsIngested counts every packet accepted at classify (not
	// dropped for an unknown type), compared against cfg.StopAfterPackets
	// by checkStopConditions at the end of each Run iteration.
	packetsIngested uint64
	// finished is the global flag observed at loop tops (spec.md §5, §7):
	// once a stop condition is reached Run sets it and returns on the next
	// iteration rather than mid-batch.
	finished  bool
	startedAt time.Time
}

// New builds a Dispatcher and the per-worker slot pairs / preemption
// channels it owns. Callers construct worker.Worker instances against
// Pair(i) and PreemptChannel(i) before calling Run.
func New(cfg Config) *Dispatcher {
	if cfg.Observer == nil {
		cfg.Observer = NoOpObserver{}
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = 20 * time.Microsecond
	}

	d := &Dispatcher{
		cfg:          cfg,
		pairs:        make([]*slot.Pair, cfg.NumWorkers),
		preempts:     make([]*preempt.Channel, cfg.NumWorkers),
		queues:       make([]*taskq.Queue, cfg.NumClasses),
		runningClass: make([]int, cfg.NumWorkers),
		runningSince: make([]int64, cfg.NumWorkers),
	}
	for i := range d.pairs {
		d.pairs[i] = slot.NewPair()
		d.preempts[i] = preempt.New(cfg.PreemptMode, nil)
		d.runningClass[i] = -1
	}
	for i := range d.queues {
		d.queues[i] = taskq.New()
	}
	return d
}

// Pair returns the worker's slot pair.
func (d *Dispatcher) Pair(worker int) *slot.Pair { return d.pairs[worker] }

// PreemptChannel returns the worker's preemption channel.
func (d *Dispatcher) PreemptChannel(worker int) *preempt.Channel { return d.preempts[worker] }

func (d *Dispatcher) budgetFor(class int) time.Duration {
	if b, ok := d.cfg.Budget[class]; ok && b > 0 {
		return b
	}
	if d.cfg.DefaultBudget > 0 {
		return d.cfg.DefaultBudget
	}
	return time.Microsecond
}

// Run drives the dispatcher loop until ctx is cancelled or a configured
// stop condition (StopAfterPackets / StopAfterDuration) is reached. The
// finished flag is only ever consulted at the top of the loop, so a batch
// already in flight always drains before Run returns.
func (d *Dispatcher) Run(ctx stdcontext.Context) error {
	d.startedAt = time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.finished {
			return errs.New("Dispatcher.Run", errs.CodeBenchmarkStop, "benchmark stop condition reached")
		}

		didWork := false
		didWork = d.drainCompletions() || didWork
		didWork = d.ingest() || didWork
		didWork = d.assign() || didWork
		d.checkBudgets()
		d.checkStopConditions()

		if !didWork {
			time.Sleep(d.cfg.IdlePoll)
		}
	}
}

// checkStopConditions sets the finished flag once a configured stop
// condition is met. It never returns early mid-loop-body; Run observes the
// flag only at the top of its next iteration.
func (d *Dispatcher) checkStopConditions() {
	if d.cfg.StopAfterPackets > 0 && d.packetsIngested >= d.cfg.StopAfterPackets {
		d.finished = true
	}
	if d.cfg.StopAfterDuration > 0 && time.Since(d.startedAt) >= d.cfg.StopAfterDuration {
		d.finished = true
	}
}

// drainCompletions reclaims every worker's response slot that has reached
// a terminal state, forwarding FINISHED payloads to the Sender and
// reinserting PREEMPTED continuations at the head of their class queue.
func (d *Dispatcher) drainCompletions() bool {
	progressed := false
	for i, pair := range d.pairs {
		out, flag, ok, err := pair.Response.ReclaimResponse(i)
		if err != nil {
			if d.cfg.Logger != nil {
				d.cfg.Logger.Errorf("dispatch: worker %d: %v", i, err)
			}
			continue
		}
		if !ok {
			continue
		}
		progressed = true
		class := d.runningClass[i]
		latency := uint64(time.Now().UnixNano() - d.runningSince[i])
		d.preempts[i].Disarm()
		d.runningClass[i] = -1

		switch flag {
		case slot.Finished:
			d.cfg.Observer.ObserveComplete(i, class, latency)
			if d.cfg.Sender != nil {
				if err := d.cfg.Sender.Send(transmit.Response{
					Cookie:    out.Cookie,
					Class:     class,
					Type:      out.Type,
					Payload:   out.Payload,
					Timestamp: out.Timestamp,
				}); err != nil {
					d.cfg.Observer.ObserveSendError(i, class)
					if d.cfg.Logger != nil {
						d.cfg.Logger.Warnf("dispatch: worker %d: send failed: %v", i, err)
					}
				}
			}
		case slot.Preempted:
			d.cfg.Observer.ObservePreempt(i, class)
			d.queues[class].EnqueueHead(out)
		case slot.Dropped:
			d.cfg.Observer.ObserveDrop(class)
		}
	}
	return progressed
}

// ingest drains the networker batch source, classifies each packet, and
// enqueues the tail of its class's Task Queue. Classification (spec.md
// §4.5 step 2) drops any packet whose type has no bound work function in
// cfg.Registry before it is ever assigned to a worker: spec.md §7 requires
// this case to be dropped and logged at ingest, not faked as a worker
// completion.
func (d *Dispatcher) ingest() bool {
	if d.cfg.Source == nil {
		return false
	}
	batch := d.cfg.Source.Drain()
	for _, p := range batch {
		class := p.Class
		if class < 0 || class >= len(d.queues) {
			class = 0
		}

		if d.cfg.Registry != nil && !d.cfg.Registry.Has(p.Type) {
			if d.cfg.Logger != nil {
				d.cfg.Logger.Warnf("dispatch: classify: %v", errs.NewClass("Dispatcher.ingest", class, errs.CodeUnknownType, p.Type.String()))
			}
			d.cfg.Observer.ObserveDrop(class)
			continue
		}

		d.queues[class].EnqueueTail(task.Task{
			Type:      p.Type,
			Payload:   p.Payload,
			Category:  task.Packet,
			Class:     class,
			Timestamp: p.Timestamp,
			Cookie:    p.Cookie,
		})
		d.packetsIngested++
		d.cfg.Observer.ObserveEnqueue(class)
	}
	for i, q := range d.queues {
		d.cfg.Observer.ObserveQueueDepth(i, q.Len())
	}
	return len(batch) > 0
}

// assign fills every idle worker's request slot with the head task the
// configured Policy selects among the non-empty class queues.
func (d *Dispatcher) assign() bool {
	assigned := false
	views := make([]policy.ClassQueue, len(d.queues))
	for i, q := range d.queues {
		views[i] = q
	}

	now := time.Now().UnixNano()
	for i, pair := range d.pairs {
		if d.runningClass[i] != -1 || !pair.Request.IsWaiting() {
			continue
		}
		class, ok := d.cfg.Policy.Select(views, now)
		if !ok {
			continue
		}
		t, ok := d.queues[class].Dequeue()
		if !ok {
			continue
		}
		pair.Request.PublishRequest(t)
		d.runningClass[i] = class
		d.runningSince[i] = now
		d.cfg.Observer.ObserveAssign(i, class)
		assigned = true
	}
	return assigned
}

// checkBudgets fires the Preemption Channel of every worker whose current
// request has run longer than its class's configured budget.
func (d *Dispatcher) checkBudgets() {
	now := time.Now().UnixNano()
	for i, class := range d.runningClass {
		if class == -1 {
			continue
		}
		budget := d.budgetFor(class)
		if time.Duration(now-d.runningSince[i]) > budget {
			d.preempts[i].Fire()
		}
	}
}
