package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	RoutesClaimed     prometheus.Counter
	RoutesExpired     prometheus.Counter
	ChecksPerformed   prometheus.Counter
	SeatsFound        prometheus.Counter
	NotificationsSent prometheus.Counter
	TasksDead         *prometheus.CounterVec
	CheckDuration     prometheus.Histogram
	ErrorsCount       *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics on the default registry
func NewMetrics(namespace string) *Metrics {
	return newMetrics(namespace, promauto.With(prometheus.DefaultRegisterer))
}

// NewMetricsWith creates the metrics on a caller-provided registerer, so
// tests can use a private registry
func NewMetricsWith(namespace string, registerer prometheus.Registerer) *Metrics {
	return newMetrics(namespace, promauto.With(registerer))
}

func newMetrics(namespace string, factory promauto.Factory) *Metrics {
	return &Metrics{
		RoutesClaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_claimed_total",
			Help:      "The total number of routes claimed for checking",
		}),
		RoutesExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_expired_total",
			Help:      "The total number of routes expired past departure",
		}),
		ChecksPerformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_performed_total",
			Help:      "The total number of availability checks against the provider",
		}),
		SeatsFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seats_found_total",
			Help:      "The total number of routes where free seats were found",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "The total number of notification emails delivered",
		}),
		TasksDead: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dead_total",
			Help:      "The total number of tasks moved to the dead letter archive",
		}, []string{"kind"}),
		CheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Time taken by availability checks",
			Buckets:   prometheus.DefBuckets,
		}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}
