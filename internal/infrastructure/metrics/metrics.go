// Package metrics exposes Prometheus collectors for the verification flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSent           = "sent"
	OutcomeInvalid        = "invalid"
	OutcomeDeliveryFailed = "delivery_failed"
	OutcomeStoreError     = "store_error"
	OutcomeConfirmed      = "confirmed"
	OutcomeNotFound       = "not_found"
	OutcomeExpired        = "expired"
	OutcomeMismatch       = "mismatch"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	sendTotal        *prometheus.CounterVec
	verifyTotal      *prometheus.CounterVec
	deliveryDuration prometheus.Histogram
	sweptTotal       prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_send_code_total",
			Help: "send-code requests by outcome",
		}, []string{"outcome"}),
		verifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_verify_code_total",
			Help: "verify-code requests by outcome",
		}, []string{"outcome"}),
		deliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "verification_email_delivery_seconds",
			Help:    "Time spent handing verification emails to the mail transport",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		sweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verification_swept_registrations_total",
			Help: "Expired pending registrations evicted by the background sweeper",
		}),
	}
	reg.MustRegister(
		m.sendTotal,
		m.verifyTotal,
		m.deliveryDuration,
		m.sweptTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) SendCode(outcome string) {
	if m == nil {
		return
	}
	m.sendTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) VerifyCode(outcome string) {
	if m == nil {
		return
	}
	m.verifyTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Delivery(d time.Duration) {
	if m == nil {
		return
	}
	m.deliveryDuration.Observe(d.Seconds())
}

func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptTotal.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
