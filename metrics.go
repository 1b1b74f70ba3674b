package udisp

import (
	"sync/atomic"
	"time"

	"github.com/kgriffin/udisp/internal/constants"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering the TPCC-workload cost range from sub-microsecond gets up to
// multi-millisecond long scans.
var LatencyBuckets = []uint64{
	1_000,       // 1us
	10_000,      // 10us
	100_000,     // 100us
	1_000_000,   // 1ms
	10_000_000,  // 10ms
	100_000_000, // 100ms
}

const numLatencyBuckets = 6

// Metrics tracks per-class dispatcher/worker statistics.
type Metrics struct {
	Assigned   atomic.Uint64 // tasks assigned to a worker
	Completed  atomic.Uint64 // tasks that finished
	Preempted  atomic.Uint64 // tasks suspended mid-flight
	SendErrors atomic.Uint64 // responses the Sender failed to deliver

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// ClassEnqueued/ClassCompleted/ClassDropped/ClassPreempted hold one
	// running count per traffic class, indexed by class number up to
	// constants.MaxClasses. These are what let a caller evaluate the
	// per-class conservation property (packets_enqueued = completed +
	// dropped + in_flight_at_stop).
	ClassEnqueued  [constants.MaxClasses]atomic.Uint64
	ClassCompleted [constants.MaxClasses]atomic.Uint64
	ClassDropped   [constants.MaxClasses]atomic.Uint64
	ClassPreempted [constants.MaxClasses]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics returns a Metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordAssign records one task handed from a class queue to a worker.
func (m *Metrics) RecordAssign() { m.Assigned.Add(1) }

// RecordComplete records one finished task and its end-to-end latency.
func (m *Metrics) RecordComplete(latencyNs uint64) {
	m.Completed.Add(1)
	m.recordLatency(latencyNs)
}

// RecordPreempt records one task suspended mid-flight by the Preemption
// Channel.
func (m *Metrics) RecordPreempt() { m.Preempted.Add(1) }

// RecordSendError records one response the configured Sender rejected.
func (m *Metrics) RecordSendError() { m.SendErrors.Add(1) }

// RecordClassEnqueue records one packet accepted into class's queue at
// ingest. A class outside [0, constants.MaxClasses) is silently ignored,
// matching the bounded class range NewSystem already enforces.
func (m *Metrics) RecordClassEnqueue(class int) { m.bumpClass(&m.ClassEnqueued, class) }

// RecordClassComplete records one task of class that reached Finished.
func (m *Metrics) RecordClassComplete(class int) { m.bumpClass(&m.ClassCompleted, class) }

// RecordClassDrop records one packet of class discarded without a
// response, whether at classify (unknown type) or at the worker (context
// pool exhaustion).
func (m *Metrics) RecordClassDrop(class int) { m.bumpClass(&m.ClassDropped, class) }

// RecordClassPreempt records one task of class suspended mid-flight.
func (m *Metrics) RecordClassPreempt(class int) { m.bumpClass(&m.ClassPreempted, class) }

func (m *Metrics) bumpClass(counters *[constants.MaxClasses]atomic.Uint64, class int) {
	if class < 0 || class >= len(counters) {
		return
	}
	counters[class].Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the measurement window as closed.
func (m *Metrics) Stop() { m.StopTime.Store(time.Now().UnixNano()) }

// MetricsSnapshot is a point-in-time read of Metrics.
type MetricsSnapshot struct {
	Assigned     uint64
	Completed    uint64
	Preempted    uint64
	SendErrors   uint64
	AvgLatencyNs uint64
	UptimeNs     uint64
	Histogram    [numLatencyBuckets]uint64

	ClassEnqueued  [constants.MaxClasses]uint64
	ClassCompleted [constants.MaxClasses]uint64
	ClassDropped   [constants.MaxClasses]uint64
	ClassPreempted [constants.MaxClasses]uint64
}

// Snapshot returns a MetricsSnapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Assigned:   m.Assigned.Load(),
		Completed:  m.Completed.Load(),
		Preempted:  m.Preempted.Load(),
		SendErrors: m.SendErrors.Load(),
	}
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}
	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}
	for i := range m.LatencyBuckets {
		snap.Histogram[i] = m.LatencyBuckets[i].Load()
	}
	for i := range m.ClassEnqueued {
		snap.ClassEnqueued[i] = m.ClassEnqueued[i].Load()
		snap.ClassCompleted[i] = m.ClassCompleted[i].Load()
		snap.ClassDropped[i] = m.ClassDropped[i].Load()
		snap.ClassPreempted[i] = m.ClassPreempted[i].Load()
	}
	return snap
}

// Reset zeroes all counters and restarts the measurement window; useful
// between benchmark runs.
func (m *Metrics) Reset() {
	m.Assigned.Store(0)
	m.Completed.Store(0)
	m.Preempted.Store(0)
	m.SendErrors.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := range m.LatencyBuckets {
		m.LatencyBuckets[i].Store(0)
	}
	for i := range m.ClassEnqueued {
		m.ClassEnqueued[i].Store(0)
		m.ClassCompleted[i].Store(0)
		m.ClassDropped[i].Store(0)
		m.ClassPreempted[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer is the pluggable metrics-collection seam used by
// internal/dispatch; its method set is the same as dispatch.Observer's, so
// a single Observer implementation can serve both the dispatcher and the
// top-level System.
type Observer interface {
	ObserveAssign(worker, class int)
	ObserveComplete(worker, class int, latencyNs uint64)
	ObservePreempt(worker, class int)
	ObserveQueueDepth(class, depth int)
	ObserveSendError(worker, class int)
	// ObserveEnqueue is called once per packet accepted into a class
	// queue at ingest.
	ObserveEnqueue(class int)
	// ObserveDrop is called once per packet discarded without a response:
	// an unknown type at classify, or a context-pool exhaustion drop.
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

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an Observer backed by m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAssign(worker, class int) {
	o.metrics.RecordAssign()
}

func (o *MetricsObserver) ObserveComplete(worker, class int, latencyNs uint64) {
	o.metrics.RecordComplete(latencyNs)
	o.metrics.RecordClassComplete(class)
}

func (o *MetricsObserver) ObservePreempt(worker, class int) {
	o.metrics.RecordPreempt()
	o.metrics.RecordClassPreempt(class)
}

func (o *MetricsObserver) ObserveQueueDepth(class, depth int) {}

func (o *MetricsObserver) ObserveSendError(worker, class int) {
	o.metrics.RecordSendError()
}

func (o *MetricsObserver) ObserveEnqueue(class int) {
	o.metrics.RecordClassEnqueue(class)
}

func (o *MetricsObserver) ObserveDrop(class int) {
	o.metrics.RecordClassDrop(class)
}

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
