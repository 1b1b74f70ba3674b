// Package constants holds process-wide defaults for the dispatcher core.
package constants

import "time"

// Worker and class limits
const (
	// MaxWorkers is the maximum number of worker cores the dispatcher can
	// drive, matching the MAX_WORKERS bound from the original dispatch.h.
	MaxWorkers = 18

	// MaxClasses bounds the number of configured traffic classes.
	MaxClasses = 16

	// NetworkerBatchMax is the maximum number of packets the networker
	// hands to the dispatcher per ingest call (ETH_RX_MAX_BATCH).
	NetworkerBatchMax = 32
)

// Context pool defaults
const (
	// DefaultMaxInFlightContexts bounds the number of suspended execution
	// contexts outstanding at once, standing in for the fixed-capacity
	// context/stack mempools of the original context pool.
	DefaultMaxInFlightContexts = 4096
)

// Work-function cost defaults, in nanoseconds, matching the TPCC workload
// mix (BENCHMARK_TYPE 5) in the original benchmark.h.
const (
	DefaultGetCostNs    = 5_700
	DefaultShortScanNs  = 6_000
	DefaultLongScanNs   = 644_000
	DefaultPutCostNs    = 20_000
	DefaultDeleteCostNs = 88_000
	DefaultSeekCostNs   = 100_000
)

// Budget and polling defaults
const (
	// DefaultClassBudget is used when a class has no explicit budget
	// configured. It is shorter than every default work-function cost
	// above, so each canonical operation overruns it at least once.
	DefaultClassBudget = 2 * time.Microsecond

	// InterruptDeliverySlack is the documented wall-clock slack the
	// budget-bound testable property (spec.md §8, property 5) allows for
	// interrupt delivery latency.
	InterruptDeliverySlack = 50 * time.Microsecond

	// CooperativeCheckpointInterval is the default granularity at which a
	// registered work function should call Yielder.Checkpoint in
	// cooperative mode.
	CooperativeCheckpointInterval = 100 * time.Nanosecond
)
