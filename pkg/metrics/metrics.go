package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scheduling core's instrumentation.
type Metrics struct {
	BookingsTotal      *prometheus.CounterVec
	SlotGeneration     prometheus.Histogram
	MeetingFailures    *prometheus.CounterVec
	OutboxProcessed    prometheus.Counter
	OutboxFailed       prometheus.Counter
	OutboxLatency      prometheus.Histogram
	SweepCancellations prometheus.Counter
}

// New creates and registers all metrics under the given namespace.
// Call once per process.
func New(namespace string) *Metrics {
	return &Metrics{
		BookingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		SlotGeneration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_generation_duration_seconds",
			Help:      "Time spent generating available slots",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		MeetingFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meeting_provider_failures_total",
			Help:      "Video meeting provider failures by operation",
		}, []string{"operation"}),
		OutboxProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		SweepCancellations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_cancellations_total",
			Help:      "Stale appointments cancelled by the sweep worker",
		}),
	}
}

// ObserveSlotGeneration records one slot-generation pass.
func (m *Metrics) ObserveSlotGeneration(start time.Time) {
	m.SlotGeneration.Observe(time.Since(start).Seconds())
}
