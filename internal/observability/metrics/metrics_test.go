package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsRegistersWithServiceLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg, Config{ServiceName: "payrelay-test", Environment: "test"})

	m.IncWebhookReceived("paystack", WebhookOutcomePersisted)
	m.IncWebhookReceived("paystack", WebhookOutcomePersisted)
	m.IncSignatureFailure()
	m.IncUpsert("webhook", true)
	m.IncUpsert("webhook", false)
	m.IncRelayAttempt()
	m.ObserveRelay(RelayOutcomeDelivered, 250*time.Millisecond)

	if got := testutil.ToFloat64(m.webhooksReceived.WithLabelValues("paystack", WebhookOutcomePersisted)); got != 2 {
		t.Fatalf("expected 2 received webhooks, got %v", got)
	}
	if got := testutil.ToFloat64(m.signatureFailures); got != 1 {
		t.Fatalf("expected 1 signature failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.upserts.WithLabelValues("webhook", "created")); got != 1 {
		t.Fatalf("expected 1 created upsert, got %v", got)
	}
	if got := testutil.ToFloat64(m.upserts.WithLabelValues("webhook", "updated")); got != 1 {
		t.Fatalf("expected 1 updated upsert, got %v", got)
	}
	if got := testutil.ToFloat64(m.relayOutcomes.WithLabelValues(RelayOutcomeDelivered)); got != 1 {
		t.Fatalf("expected 1 delivered relay, got %v", got)
	}
}

func TestNewMetricsDefaultsBlankServiceMetadata(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg, Config{})

	m.IncRelayAttempt()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
	for _, lp := range families[0].Metric[0].Label {
		switch lp.GetName() {
		case "service":
			if lp.GetValue() != "payrelay" {
				t.Fatalf("expected default service label, got %q", lp.GetValue())
			}
		case "env":
			if lp.GetValue() != "unknown" {
				t.Fatalf("expected default env label, got %q", lp.GetValue())
			}
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.IncWebhookReceived("paystack", WebhookOutcomeFailed)
	m.IncSignatureFailure()
	m.IncUpsert("peer_push", true)
	m.IncRelayAttempt()
	m.ObserveRelay(RelayOutcomeExhausted, time.Second)
}
