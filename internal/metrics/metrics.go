package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vocalroom",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created.",
		},
	)

	reservationCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vocalroom",
			Name:      "reservation_cancelled_total",
			Help:      "Count of reservations removed, by actor.",
		},
		[]string{"actor"},
	)

	reservationRenamed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vocalroom",
			Name:      "reservation_renamed_total",
			Help:      "Count of admin renames.",
		},
	)

	backendError = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vocalroom",
			Name:      "backend_error_total",
			Help:      "Count of backend failures by operation.",
		},
		[]string{"op"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vocalroom",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationCreated,
			reservationCancelled,
			reservationRenamed,
			backendError,
			httpRequests,
		)
	})
}

func IncReservationCreated() {
	reservationCreated.Inc()
}

func IncReservationCancelled(actor string) {
	reservationCancelled.WithLabelValues(actor).Inc()
}

func IncReservationRenamed() {
	reservationRenamed.Inc()
}

func IncBackendError(op string) {
	backendError.WithLabelValues(op).Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
