// Command udispbench drives a udisp.System with a synthetic TPCC-style
// packet mix, standing in for the original's ubench packet generator
// (benchmark.h BENCHMARK_TYPE 5). It is a thin driver over the in-memory
// netsim source, not a CLI framework: no config files, no subcommands.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	udisp "github.com/kgriffin/udisp"
	"github.com/kgriffin/udisp/internal/logging"
	"github.com/kgriffin/udisp/internal/netsim"
	"github.com/kgriffin/udisp/internal/policy"
	"github.com/kgriffin/udisp/internal/preempt"
	"github.com/kgriffin/udisp/internal/task"
	"github.com/kgriffin/udisp/internal/transmit"
)

// tpccMix is the BENCHMARK_TYPE 5 operation mix from the original
// benchmark.h, expressed as per-type weights summing to 1; pickType
// accumulates them into cumulative bounds over [0,1).
var tpccMix = []struct {
	typ    task.Type
	weight float64
}{
	{task.Get, 0.60},
	{task.Scan, 0.15},
	{task.Put, 0.15},
	{task.Delete, 0.05},
	{task.Seek, 0.05},
}

func pickType(r *rand.Rand) task.Type {
	roll := r.Float64()
	var cumulative float64
	for _, m := range tpccMix {
		cumulative += m.weight
		if roll < cumulative {
			return m.typ
		}
	}
	return tpccMix[len(tpccMix)-1].typ
}

func main() {
	var (
		workers     = flag.Int("workers", 4, "number of worker cores")
		classes     = flag.Int("classes", 1, "number of traffic classes")
		policyName  = flag.String("policy", "fifo", "scheduling policy: fifo or slo")
		preemptName = flag.String("preempt", "cooperative", "preemption mode: none, cooperative, or interrupt")
		duration    = flag.Duration("duration", 10*time.Second, "how long to generate packets before stopping")
		rate        = flag.Int("rate", 100000, "packets per second submitted to the networker source")
		budget      = flag.Duration("budget", 2*time.Microsecond, "default per-class preemption budget")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
		verbose     = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	var pol policy.Policy
	switch strings.ToLower(*policyName) {
	case "fifo":
		pol = policy.FIFO{}
	case "slo":
		pol = policy.SLOWeighted{DefaultSLO: *budget}
	default:
		log.Fatalf("unknown -policy %q: want fifo or slo", *policyName)
	}

	var mode preempt.Mode
	switch strings.ToLower(*preemptName) {
	case "none":
		mode = preempt.None
	case "cooperative":
		mode = preempt.Cooperative
	case "interrupt":
		mode = preempt.Interrupt
	default:
		log.Fatalf("unknown -preempt %q: want none, cooperative, or interrupt", *preemptName)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)

	registry := prometheus.NewRegistry()
	observer := udisp.NewPrometheusObserver(registry)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("serving metrics", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	src := netsim.NewSource(4096)
	sink := transmit.NewRecordingSender()

	sys, err := udisp.NewSystem(udisp.Config{
		NumWorkers:         *workers,
		NumClasses:         *classes,
		Policy:             pol,
		PreemptMode:        mode,
		DefaultClassBudget: *budget,
		Source:             src,
		Sender:             sink,
		Logger:             logger,
		Observer:           observer,
	})
	if err != nil {
		logger.Error("failed to build system", "error", err)
		os.Exit(1)
	}

	logger.Info("starting dispatcher", "workers", *workers, "classes", *classes,
		"policy", *policyName, "preempt", *preemptName, "rate", *rate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- sys.Run(ctx) }()

	setupStackDumpHandler(logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	genCtx, cancelGen := context.WithTimeout(ctx, *duration)
	defer cancelGen()
	genDone := make(chan struct{})
	go generate(genCtx, src, *classes, *rate, genDone)

	select {
	case <-genDone:
		logger.Info("generator finished", "duration", duration.String())
	case <-sigCh:
		logger.Info("received shutdown signal")
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		logger.Warn("system did not stop within grace period")
	}

	sent := sink.Sent()
	fmt.Printf("submitted packets, received %d responses\n", len(sent))
}

// generate submits packets to src at approximately packetsPerSec until ctx
// is cancelled, classifying each packet into [0, classes) round-robin.
func generate(ctx context.Context, src *netsim.Source, classes, packetsPerSec int, done chan<- struct{}) {
	defer close(done)
	if classes <= 0 {
		classes = 1
	}
	if packetsPerSec <= 0 {
		packetsPerSec = 1
	}

	r := rand.New(rand.NewSource(1))
	interval := time.Second / time.Duration(packetsPerSec)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var cookie uint64
	var class int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cookie++
			src.TrySubmit(netsim.Packet{
				Type:      pickType(r),
				Class:     class,
				Timestamp: time.Now().UnixNano(),
				Cookie:    cookie,
			})
			class = (class + 1) % classes
		}
	}
}

// setupStackDumpHandler wires SIGUSR1 to a full goroutine stack dump, for
// diagnosing a stuck worker or a dispatcher loop stall mid-run.
func setupStackDumpHandler(logger *logging.Logger) {
	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1024*1024)
			n := runtime.Stack(buf, true)
			filename := fmt.Sprintf("udispbench-stacks-%d.txt", time.Now().Unix())
			if f, err := os.Create(filename); err == nil {
				fmt.Fprintf(f, "Goroutine stack dump at %s\n", time.Now().Format(time.RFC3339))
				f.Write(buf[:n])
				fmt.Fprintf(f, "\n\n=== GOROUTINE PROFILE ===\n")
				pprof.Lookup("goroutine").WriteTo(f, 2)
				f.Close()
				logger.Info("stack trace written to file", "file", filename)
			}
		}
	}()
}
