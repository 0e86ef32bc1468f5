package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics tracks periodic payout batch jobs.
type SchedulerMetrics struct {
	jobRuns      *prometheus.CounterVec
	jobErrors    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	lockAcquired *prometheus.CounterVec
	lockSkipped  *prometheus.CounterVec
}

var (
	schedulerMetrics     *SchedulerMetrics
	schedulerMetricsOnce sync.Once
)

// Scheduler returns the process-wide scheduler metrics, registering them on
// first use.
func Scheduler() *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest clears the singleton between test runs.
func ResetSchedulerMetricsForTest() {
	schedulerMetrics = nil
	schedulerMetricsOnce = sync.Once{}
}

func newSchedulerMetrics(registerer prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorpay_scheduler_job_runs_total",
			Help: "Scheduler job executions by job name.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorpay_scheduler_job_errors_total",
			Help: "Scheduler job failures by job name and error class.",
		}, []string{"job", "class"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creatorpay_scheduler_job_duration_seconds",
			Help:    "Scheduler job duration by job name.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lockAcquired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorpay_scheduler_lock_acquired_total",
			Help: "Advisory lock acquisitions by resource.",
		}, []string{"resource"}),
		lockSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorpay_scheduler_lock_skipped_total",
			Help: "Runs skipped because another holder owns the lock.",
		}, []string{"resource"}),
	}

	if registerer != nil {
		registerer.MustRegister(m.jobRuns, m.jobErrors, m.jobDuration, m.lockAcquired, m.lockSkipped)
	}
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, classifySchedulerError(err)).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *SchedulerMetrics) IncLockAcquired(resource string) {
	if m == nil {
		return
	}
	m.lockAcquired.WithLabelValues(resource).Inc()
}

func (m *SchedulerMetrics) IncLockSkipped(resource string) {
	if m == nil {
		return
	}
	m.lockSkipped.WithLabelValues(resource).Inc()
}

func classifySchedulerError(err error) string {
	if err == nil {
		return "none"
	}
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "deadline exceeded"), strings.Contains(message, "timeout"):
		return "timeout"
	case strings.Contains(message, "duplicate key"), strings.Contains(message, "unique constraint"):
		return "duplicate"
	case strings.Contains(message, "connection"):
		return "db"
	default:
		return "other"
	}
}
