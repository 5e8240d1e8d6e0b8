package library

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts lending workflow outcomes.
type Metrics struct {
	lends    prometheus.Counter
	returns  prometheus.Counter
	failures *prometheus.CounterVec
}

// NewMetrics registers the lending counters with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		lends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "lendings_created_total",
			Help:      "Books lent to members.",
		}),
		returns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "lendings_returned_total",
			Help:      "Lendings marked returned.",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "lending_failures_total",
			Help:      "Rejected lend and return operations by reason.",
		}, []string{"op", "reason"}),
	}
}

func (m *Metrics) failed(op string, err error) {
	m.failures.WithLabelValues(op, failureReason(err)).Inc()
}

func failureReason(err error) string {
	var fe *FieldError
	var se *StoreError
	switch {
	case errors.As(err, &fe):
		return "invalid_field"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBookNotAvailable):
		return "book_not_available"
	case errors.Is(err, ErrInvalidDateRange):
		return "invalid_date_range"
	case errors.Is(err, ErrAlreadyReturned):
		return "already_returned"
	case errors.As(err, &se):
		return "store"
	}
	return "other"
}
