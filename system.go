package udisp

import (
	stdcontext "context"
	"sync"
	"time"

	"github.com/kgriffin/udisp/internal/constants"
	"github.com/kgriffin/udisp/internal/ctxpool"
	"github.com/kgriffin/udisp/internal/dispatch"
	"github.com/kgriffin/udisp/internal/logging"
	"github.com/kgriffin/udisp/internal/netsim"
	"github.com/kgriffin/udisp/internal/policy"
	"github.com/kgriffin/udisp/internal/preempt"
	"github.com/kgriffin/udisp/internal/transmit"
	"github.com/kgriffin/udisp/internal/work"
	"github.com/kgriffin/udisp/internal/worker"
)

// Config configures a System: the worker count, traffic classes,
// scheduling policy, preemption mode, and the external interface
// implementations (packet source and response sender).
type Config struct {
	NumWorkers  int
	NumClasses  int
	Policy      policy.Policy
	PreemptMode preempt.Mode

	MaxInFlightContexts int
	ClassBudget         map[int]time.Duration
	DefaultClassBudget  time.Duration

	Source *netsim.Source
	Sender transmit.Sender

	// WorkRegistry overrides the per-worker default registry; primarily
	// for tests. Leave nil for the canonical TPCC-cost registry wired to
	// each worker's own Preemption Channel.
	WorkRegistry *work.Registry

	// CPUAffinity assigns worker i to CPUAffinity[i % len(CPUAffinity)];
	// nil disables pinning.
	CPUAffinity []int

	Logger   *logging.Logger
	Observer Observer

	// StopAfterPackets, if positive, stops the System once this many
	// packets have been classified and enqueued, mirroring the original's
	// BENCHMARK_STOP_AT_PACKET benchmark harness configuration.
	StopAfterPackets uint64
	// StopAfterDuration, if positive, stops the System once this long has
	// elapsed since Run was called, mirroring BENCHMARK_DURATION_US.
	StopAfterDuration time.Duration
}

func (c *Config) setDefaults() {
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.NumClasses <= 0 {
		c.NumClasses = 1
	}
	if c.Policy == nil {
		c.Policy = policy.FIFO{}
	}
	if c.MaxInFlightContexts <= 0 {
		c.MaxInFlightContexts = constants.DefaultMaxInFlightContexts
	}
	if c.DefaultClassBudget <= 0 {
		c.DefaultClassBudget = constants.DefaultClassBudget
	}
	if c.Observer == nil {
		c.Observer = NoOpObserver{}
	}
}

// observerAdapter lets the root Observer (which also backs
// PrometheusObserver/MetricsObserver) satisfy dispatch.Observer without
// the dispatch package importing the root package.
type observerAdapter struct{ Observer }

var _ dispatch.Observer = observerAdapter{}

// System wires a Dispatcher and its worker pool into a runnable unit, the
// realization of the overall architecture in spec.md §2.
type System struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	pool       *ctxpool.Pool
	workers    []*worker.Worker
}

// NewSystem validates cfg, fills in defaults, and builds the dispatcher,
// context pool, and worker set. It does not start any goroutines; call
// Run to do that.
func NewSystem(cfg Config) (*System, error) {
	cfg.setDefaults()

	if cfg.NumWorkers > constants.MaxWorkers {
		return nil, NewError("NewSystem", CodeSetupFailed, "NumWorkers exceeds MaxWorkers")
	}
	if cfg.NumClasses > constants.MaxClasses {
		return nil, NewError("NewSystem", CodeSetupFailed, "NumClasses exceeds MaxClasses")
	}

	// The dispatcher's classify step needs to know which types are
	// servable before it ever enqueues a packet, but the per-worker
	// registries below are built against each worker's own Preemption
	// Channel (which in turn needs the dispatcher to exist first). A
	// classification registry only needs the type set, not the per-worker
	// checkpoint closures, so build one now: cfg.WorkRegistry itself if the
	// caller supplied one, otherwise a throwaway canonical registry whose
	// work functions are never invoked.
	classifyReg := cfg.WorkRegistry
	if classifyReg == nil {
		classifyReg = work.NewDefaultRegistry(func() bool { return false })
	}

	d := dispatch.New(dispatch.Config{
		NumWorkers:        cfg.NumWorkers,
		NumClasses:        cfg.NumClasses,
		Policy:            cfg.Policy,
		Source:            cfg.Source,
		Sender:            cfg.Sender,
		Registry:          classifyReg,
		Budget:            cfg.ClassBudget,
		DefaultBudget:     cfg.DefaultClassBudget,
		PreemptMode:       cfg.PreemptMode,
		Logger:            cfg.Logger,
		Observer:          observerAdapter{cfg.Observer},
		StopAfterPackets:  cfg.StopAfterPackets,
		StopAfterDuration: cfg.StopAfterDuration,
	})

	pool := ctxpool.NewPool(cfg.MaxInFlightContexts)

	workers := make([]*worker.Worker, cfg.NumWorkers)
	for i := 0; i < cfg.NumWorkers; i++ {
		reg := cfg.WorkRegistry
		if reg == nil {
			reg = work.NewDefaultRegistry(d.PreemptChannel(i).ShouldYield)
		}
		w := worker.NewWorker(i, d.Pair(i), d.PreemptChannel(i), pool, reg, cfg.Logger)
		if len(cfg.CPUAffinity) > 0 {
			w = w.WithCPU(cfg.CPUAffinity[i%len(cfg.CPUAffinity)])
		}
		workers[i] = w
	}

	return &System{cfg: cfg, dispatcher: d, pool: pool, workers: workers}, nil
}

// Run starts the dispatcher and every worker, blocking until ctx is
// cancelled or one of them returns an unrecoverable error. All goroutines
// are given a chance to observe cancellation before Run returns.
func (s *System) Run(ctx stdcontext.Context) error {
	cctx, cancel := stdcontext.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1+len(s.workers))

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- s.dispatcher.Run(cctx)
	}()

	for _, w := range s.workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- w.Run(cctx)
		}()
	}

	first := <-errCh
	cancel()
	wg.Wait()
	close(errCh)
	return first
}

// Pool exposes the System's shared Context Pool for diagnostics.
func (s *System) Pool() *ctxpool.Pool { return s.pool }
