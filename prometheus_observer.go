package udisp

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusObserver implements Observer by exporting the same events
// Metrics tracks as Prometheus collectors, for deployments that scrape
// rather than poll Snapshot().
type PrometheusObserver struct {
	assigned    *prometheus.CounterVec
	completed   *prometheus.CounterVec
	preempted   *prometheus.CounterVec
	enqueued    *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	sendErrors  prometheus.Counter
	queueDepth  *prometheus.GaugeVec
	latencyHist *prometheus.HistogramVec
}

// NewPrometheusObserver registers its collectors against reg and returns
// an Observer. Pass prometheus.DefaultRegisterer for the global registry.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	factory := promauto.With(reg)
	return &PrometheusObserver{
		assigned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "udisp_tasks_assigned_total",
			Help: "Tasks handed from a class queue to a worker.",
		}, []string{"worker", "class"}),
		completed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "udisp_tasks_completed_total",
			Help: "Tasks that ran to completion.",
		}, []string{"worker", "class"}),
		preempted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "udisp_tasks_preempted_total",
			Help: "Tasks suspended mid-flight by the preemption channel.",
		}, []string{"worker", "class"}),
		enqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "udisp_packets_enqueued_total",
			Help: "Packets accepted into a class queue at ingest.",
		}, []string{"class"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "udisp_packets_dropped_total",
			Help: "Packets discarded without producing a response, by class.",
		}, []string{"class"}),
		sendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "udisp_send_errors_total",
			Help: "Responses the configured Sender failed to deliver.",
		}),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "udisp_class_queue_depth",
			Help: "Current Task Queue length per traffic class.",
		}, []string{"class"}),
		latencyHist: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "udisp_task_latency_seconds",
			Help:    "End-to-end task latency from assignment to completion.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"worker", "class"}),
	}
}

func classLabel(class int) string {
	if class < 0 {
		return "none"
	}
	return strconv.Itoa(class)
}

func workerLabel(worker int) string {
	if worker < 0 {
		return "none"
	}
	return strconv.Itoa(worker)
}

func (o *PrometheusObserver) ObserveAssign(worker, class int) {
	o.assigned.WithLabelValues(workerLabel(worker), classLabel(class)).Inc()
}

func (o *PrometheusObserver) ObserveComplete(worker, class int, latencyNs uint64) {
	o.completed.WithLabelValues(workerLabel(worker), classLabel(class)).Inc()
	o.latencyHist.WithLabelValues(workerLabel(worker), classLabel(class)).Observe(float64(latencyNs) / 1e9)
}

func (o *PrometheusObserver) ObservePreempt(worker, class int) {
	o.preempted.WithLabelValues(workerLabel(worker), classLabel(class)).Inc()
}

func (o *PrometheusObserver) ObserveQueueDepth(class, depth int) {
	o.queueDepth.WithLabelValues(classLabel(class)).Set(float64(depth))
}

func (o *PrometheusObserver) ObserveSendError(worker, class int) {
	o.sendErrors.Inc()
}

func (o *PrometheusObserver) ObserveEnqueue(class int) {
	o.enqueued.WithLabelValues(classLabel(class)).Inc()
}

func (o *PrometheusObserver) ObserveDrop(class int) {
	o.dropped.WithLabelValues(classLabel(class)).Inc()
}

var _ Observer = (*PrometheusObserver)(nil)
