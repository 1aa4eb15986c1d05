package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CheckoutMetrics tracks commit attempts by outcome.
type CheckoutMetrics struct {
	commits  *prometheus.CounterVec
	duration prometheus.Histogram
	revenue  *prometheus.CounterVec
}

// NewCheckoutMetrics registers checkout metrics. A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "commits_total",
		Help:      "Checkout commit attempts partitioned by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "commit_duration_seconds",
		Help:      "Duration of the checkout commit transaction.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	revenue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "revenue_total",
		Help:      "Committed sale totals by payment type.",
	}, []string{"payment_type"})
	reg.MustRegister(commits, duration, revenue)
	return &CheckoutMetrics{commits: commits, duration: duration, revenue: revenue}
}

// ObserveCommit records a finished commit attempt.
func (c *CheckoutMetrics) ObserveCommit(outcome string, elapsed time.Duration) {
	if c == nil || c.commits == nil {
		return
	}
	c.commits.WithLabelValues(normalizeLabel(outcome)).Inc()
	c.duration.Observe(elapsed.Seconds())
}

// AddRevenue adds a committed total to the revenue counter.
func (c *CheckoutMetrics) AddRevenue(paymentType string, amount int64) {
	if c == nil || c.revenue == nil || amount <= 0 {
		return
	}
	c.revenue.WithLabelValues(normalizeLabel(paymentType)).Add(float64(amount))
}

// ReceiptMetrics counts rendered receipt artifacts.
type ReceiptMetrics struct {
	renders  *prometheus.CounterVec
	degraded *prometheus.CounterVec
}

func NewReceiptMetrics(reg prometheus.Registerer) *ReceiptMetrics {
	if reg == nil {
		return &ReceiptMetrics{}
	}
	renders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "receipts",
		Name:      "renders_total",
		Help:      "Rendered receipts by format.",
	}, []string{"format"})
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "receipts",
		Name:      "degraded_total",
		Help:      "Receipt renders that fell back to a reduced artifact.",
	}, []string{"reason"})
	reg.MustRegister(renders, degraded)
	return &ReceiptMetrics{renders: renders, degraded: degraded}
}

func (r *ReceiptMetrics) IncRender(format string) {
	if r == nil || r.renders == nil {
		return
	}
	r.renders.WithLabelValues(normalizeLabel(format)).Inc()
}

func (r *ReceiptMetrics) IncDegraded(reason string) {
	if r == nil || r.degraded == nil {
		return
	}
	r.degraded.WithLabelValues(normalizeLabel(reason)).Inc()
}

// HTTPMetrics records request counts and latency per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})
	reg.MustRegister(requests, latency)
	return &HTTPMetrics{requests: requests, latency: latency}
}

func (h *HTTPMetrics) Observe(route, status string, elapsed time.Duration) {
	if h == nil || h.requests == nil {
		return
	}
	route = normalizeLabel(route)
	h.requests.WithLabelValues(route, status).Inc()
	h.latency.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
