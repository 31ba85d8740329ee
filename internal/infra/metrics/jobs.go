package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobsAdmittedTotal, jobQueueMs, jobProcessMs) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trajectory_jobs_processed_total",
		Help: "Total number of trajectory jobs reaching a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'done', 'failed', 'stalled'
)

var jobsAdmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trajectory_jobs_admitted_total",
		Help: "Total number of job admission attempts, labeled by outcome.",
	},
	[]string{"outcome"}, // 'accepted', 'invalid_payload', 'insufficient_credit', 'transport_error', ...
)

var jobQueueMs = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "trajectory_job_queue_ms",
		Help:    "Time between job submission and execution start in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	},
)

var jobProcessMs = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "trajectory_job_process_ms",
		Help:    "Remote prediction execution time in milliseconds.",
		Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 180000},
	},
)

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobAdmitted(outcome string) {
	jobsAdmittedTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveJobQueueMs(ms float64)   { jobQueueMs.Observe(ms) }
func ObserveJobProcessMs(ms float64) { jobProcessMs.Observe(ms) }
