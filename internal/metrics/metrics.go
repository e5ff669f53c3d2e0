package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
)

const namespace = "ucp_agent"

// Metrics implements ucp.Observer and agent.Hooks.
type Metrics struct {
	MerchantCalls     *prometheus.CounterVec
	MerchantLatencyMS *prometheus.HistogramVec
	CheckoutsStarted  prometheus.Counter
	OrdersPlaced      prometheus.Counter
	OrderValueMinor   *prometheus.CounterVec
	Requests          *prometheus.CounterVec
	LatencyMS         *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	buckets := []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 15000}
	m := &Metrics{
		MerchantCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merchant_calls_total",
			Help:      "Merchant calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		MerchantLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merchant_call_duration_ms",
			Help:      "Merchant call latency in milliseconds.",
			Buckets:   buckets,
		}, []string{"op"}),
		CheckoutsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_started_total",
			Help:      "Checkout sessions opened at merchants.",
		}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Checkout sessions completed into orders.",
		}),
		OrderValueMinor: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_value_minor_total",
			Help:      "Sum of completed order totals in minor currency units.",
		}, []string{"currency"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   buckets,
		}, []string{"handler"}),
		gatherer: reg,
	}
	reg.MustRegister(m.MerchantCalls, m.MerchantLatencyMS, m.CheckoutsStarted,
		m.OrdersPlaced, m.OrderValueMinor, m.Requests, m.LatencyMS)
	return m
}

func (m *Metrics) ObserveCall(op, outcome string, elapsed time.Duration) {
	m.MerchantCalls.WithLabelValues(op, outcome).Inc()
	m.MerchantLatencyMS.WithLabelValues(op).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) CheckoutStarted(context.Context, agent.CheckoutStarted) error {
	m.CheckoutsStarted.Inc()
	return nil
}

func (m *Metrics) OrderPlaced(_ context.Context, e agent.OrderPlaced) error {
	m.OrdersPlaced.Inc()
	if e.Total > 0 {
		m.OrderValueMinor.WithLabelValues(e.Currency).Add(float64(e.Total))
	}
	return nil
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(handler string, status int, start time.Time) {
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
