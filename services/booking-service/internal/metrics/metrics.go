package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics counts booking outcomes and lifecycle transitions.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	dispatchTotal    *prometheus.CounterVec
	availability     *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Appointment lifecycle transitions by action and outcome",
		}, []string{"action", "outcome"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "notification_dispatch_total",
			Help:      "Notification intents handed to the dispatcher",
		}, []string{"event_type", "status"}),
		availability: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "availability_seconds",
			Help:      "Latency of availability resolution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scope"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.dispatchTotal, m.availability)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *BookingMetrics) ObserveDispatch(eventType string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.dispatchTotal.WithLabelValues(eventType, status).Inc()
}

// ObserveAvailability records resolution latency; scope is "staff" or "any".
func (m *BookingMetrics) ObserveAvailability(scope string, seconds float64) {
	if m == nil {
		return
	}
	m.availability.WithLabelValues(scope).Observe(seconds)
}
