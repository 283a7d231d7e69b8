package obs

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"staybook/internal/app/policies"
	domainpayment "staybook/internal/domain/payment"
)

// Metrics records booking and payment counters on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	bookingsReserved  *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	paymentsInitiated *prometheus.CounterVec
	paymentsSettled   *prometheus.CounterVec
	gatewayCalls      *prometheus.CounterVec
	gatewayDuration   *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		bookingsReserved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staybook_bookings_reserved_total",
				Help: "Reservation attempts by outcome",
			},
			[]string{"outcome"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staybook_booking_transitions_total",
				Help: "Applied booking status transitions",
			},
			[]string{"from", "to", "trigger"},
		),
		paymentsInitiated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staybook_payments_initiated_total",
				Help: "Payment initiations by outcome",
			},
			[]string{"outcome"},
		),
		paymentsSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staybook_payments_settled_total",
				Help: "Payments moved to a terminal status",
			},
			[]string{"status"},
		),
		gatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staybook_gateway_calls_total",
				Help: "Payment provider calls by operation and result",
			},
			[]string{"op", "result"},
		),
		gatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "staybook_gateway_call_duration_seconds",
				Help:    "Payment provider call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.bookingsReserved,
		m.transitions,
		m.paymentsInitiated,
		m.paymentsSettled,
		m.gatewayCalls,
		m.gatewayDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) BookingReserved(outcome string) {
	m.bookingsReserved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BookingTransition(from, to, trigger string) {
	m.transitions.WithLabelValues(from, to, trigger).Inc()
}

func (m *Metrics) PaymentInitiated(outcome string) {
	m.paymentsInitiated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PaymentSettled(status string) {
	m.paymentsSettled.WithLabelValues(status).Inc()
}

func (m *Metrics) GatewayCall(op string, d time.Duration, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domainpayment.ErrGatewayUnavailable):
		result = "unavailable"
	default:
		result = "error"
	}
	m.gatewayCalls.WithLabelValues(op, result).Inc()
	m.gatewayDuration.WithLabelValues(op).Observe(d.Seconds())
}

var _ policies.Metrics = (*Metrics)(nil)
