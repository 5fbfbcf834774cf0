package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal  *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	transitionFailures *prometheus.CounterVec
	tickDuration       prometheus.Histogram
	ticksSkippedTotal  prometheus.Counter
	notifyDroppedTotal prometheus.Counter
	registerOnce       sync.Once
)

// Register initializes Prometheus metrics on the default registry.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polling",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the polling API.",
		}, []string{"method", "path", "status"})

		transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polling",
			Name:      "transitions_total",
			Help:      "Poll lifecycle transitions applied, by outcome.",
		}, []string{"outcome"})

		transitionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "polling",
			Name:      "transition_failures_total",
			Help:      "Poll lifecycle transitions that failed, by reason.",
		}, []string{"reason"})

		tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "polling",
			Name:      "tick_duration_seconds",
			Help:      "Duration of scheduler ticks.",
			Buckets:   prometheus.DefBuckets,
		})

		ticksSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "polling",
			Name:      "ticks_skipped_total",
			Help:      "Scheduler ticks skipped because a previous tick was still running.",
		})

		notifyDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "polling",
			Name:      "notify_dropped_total",
			Help:      "Poll events dropped for slow subscribers.",
		})
	})
}

// IncRequest increments the http_requests_total counter with the given labels.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

func IncTransition(outcome string) {
	if transitionsTotal == nil {
		return
	}
	transitionsTotal.WithLabelValues(outcome).Inc()
}

func IncTransitionFailure(reason string) {
	if transitionFailures == nil {
		return
	}
	transitionFailures.WithLabelValues(reason).Inc()
}

func ObserveTick(d time.Duration) {
	if tickDuration == nil {
		return
	}
	tickDuration.Observe(d.Seconds())
}

func IncTickSkipped() {
	if ticksSkippedTotal == nil {
		return
	}
	ticksSkippedTotal.Inc()
}

func IncNotifyDropped() {
	if notifyDroppedTotal == nil {
		return
	}
	notifyDroppedTotal.Inc()
}
