package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	WebhookOutcomePersisted = "persisted"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeInvalid   = "invalid"
	WebhookOutcomeFailed    = "failed"

	RelayOutcomeDelivered = "delivered"
	RelayOutcomeExhausted = "exhausted"
)

// Config carries the service metadata stamped onto every metric.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics captures webhook ingestion and relay health signals.
type Metrics struct {
	webhooksReceived  *prometheus.CounterVec
	signatureFailures prometheus.Counter
	upserts           *prometheus.CounterVec
	relayAttempts     prometheus.Counter
	relayOutcomes     *prometheus.CounterVec
	relayDuration     prometheus.Observer
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// New returns the singleton metrics registry labeled with service metadata.
func New(cfg Config) *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return metrics
}

// ResetForTest resets the metrics singleton for tests.
func ResetForTest() {
	metricsOnce = sync.Once{}
	metrics = nil
}

func newMetrics(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "payrelay"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	webhooksReceived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "payrelay_webhooks_received_total",
		Help:        "Webhook deliveries received by outcome.",
		ConstLabels: constLabels,
	}, []string{"gateway", "outcome"})
	signatureFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "payrelay_webhook_signature_failures_total",
		Help:        "Webhook deliveries whose signature did not verify.",
		ConstLabels: constLabels,
	})
	upserts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "payrelay_payment_upserts_total",
		Help:        "Payment records created or updated by origin.",
		ConstLabels: constLabels,
	}, []string{"origin", "op"})
	relayAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "payrelay_relay_attempts_total",
		Help:        "Downstream notify attempts including retries.",
		ConstLabels: constLabels,
	})
	relayOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "payrelay_relay_outcomes_total",
		Help:        "Relay outcomes after the retry budget is spent.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	relayDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "payrelay_relay_duration_seconds",
		Help:        "End-to-end relay latency including retries.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		webhooksReceived,
		signatureFailures,
		upserts,
		relayAttempts,
		relayOutcomes,
		relayDuration,
	)

	return &Metrics{
		webhooksReceived:  webhooksReceived,
		signatureFailures: signatureFailures,
		upserts:           upserts,
		relayAttempts:     relayAttempts,
		relayOutcomes:     relayOutcomes,
		relayDuration:     relayDuration,
	}
}

// IncWebhookReceived increments the delivery counter for a gateway and outcome.
func (m *Metrics) IncWebhookReceived(gateway, outcome string) {
	if m == nil || m.webhooksReceived == nil {
		return
	}
	m.webhooksReceived.WithLabelValues(gateway, outcome).Inc()
}

// IncSignatureFailure increments the signature failure counter.
func (m *Metrics) IncSignatureFailure() {
	if m == nil || m.signatureFailures == nil {
		return
	}
	m.signatureFailures.Inc()
}

// IncUpsert records a payment insert or update by origin.
func (m *Metrics) IncUpsert(origin string, created bool) {
	if m == nil || m.upserts == nil {
		return
	}
	op := "updated"
	if created {
		op = "created"
	}
	m.upserts.WithLabelValues(origin, op).Inc()
}

// IncRelayAttempt increments the notify attempt counter.
func (m *Metrics) IncRelayAttempt() {
	if m == nil || m.relayAttempts == nil {
		return
	}
	m.relayAttempts.Inc()
}

// ObserveRelay records the relay outcome and total duration.
func (m *Metrics) ObserveRelay(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if m.relayOutcomes != nil {
		m.relayOutcomes.WithLabelValues(outcome).Inc()
	}
	if m.relayDuration != nil {
		m.relayDuration.Observe(duration.Seconds())
	}
}
