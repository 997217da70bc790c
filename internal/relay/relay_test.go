package relay_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/nexus"
	"github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/relay"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingAlerts struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAlerts) Notify(ctx context.Context, event string, fields map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAlerts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func newDownstream(t *testing.T, notify http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
		case "/api/payments/notify":
			notify(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newRelayService(t *testing.T, baseURL string, db *gorm.DB, mode string, alerts *recordingAlerts) *relay.Service {
	t.Helper()

	node, err := snowflake.NewNode(30)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	client := nexus.NewClient(nexus.Config{BaseURL: baseURL, Username: "u", Password: "p"}, zap.NewNop())
	params := relay.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Client: client,
		Clock:  clock.NewSystemClock(),
		Cfg: relay.Config{
			Mode:           mode,
			MaxAttempts:    3,
			MaxFaults:      2,
			AttemptTimeout: 2 * time.Second,
			RetryDelay:     time.Millisecond,
			PollInterval:   time.Millisecond,
			BatchSize:      10,
		},
	}
	if alerts != nil {
		params.Alerts = alerts
	}
	return relay.NewService(params)
}

func relayTestPayment() *domain.Payment {
	event := "charge.success"
	ref := "ref_1"
	return &domain.Payment{
		Gateway:       "paystack",
		Event:         &event,
		TransactionID: "tx_1",
		Reference:     &ref,
		StatusRaw:     "success",
		Status:        "success",
		Currency:      "NGN",
	}
}

func TestRelayRetriesThenDelivers(t *testing.T) {
	var notifies atomic.Int64
	srv := newDownstream(t, func(w http.ResponseWriter, r *http.Request) {
		if notifies.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	defer srv.Close()

	svc := newRelayService(t, srv.URL, nil, config.RelayModeInline, nil)
	out := svc.Relay(context.Background(), relayTestPayment(), "webhook_a")

	if !out.Delivered {
		t.Fatalf("expected delivery, got %+v", out)
	}
	if out.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", out.Attempts)
	}
	if got := notifies.Load(); got != 3 {
		t.Fatalf("expected 3 notify calls, got %d", got)
	}
}

func TestRelayStopsAtAttemptBudget(t *testing.T) {
	var notifies atomic.Int64
	srv := newDownstream(t, func(w http.ResponseWriter, r *http.Request) {
		notifies.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	alerts := &recordingAlerts{}
	svc := newRelayService(t, srv.URL, nil, config.RelayModeInline, alerts)
	out := svc.Relay(context.Background(), relayTestPayment(), "webhook_b")

	if out.Delivered {
		t.Fatalf("expected exhaustion")
	}
	if out.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", out.Attempts)
	}
	if out.Faults != 0 {
		t.Fatalf("downstream responses are not faults, got %d", out.Faults)
	}
	if got := notifies.Load(); got != 3 {
		t.Fatalf("expected 3 notify calls, got %d", got)
	}
	if alerts.count() != 1 {
		t.Fatalf("expected one terminal alert, got %d", alerts.count())
	}
}

func TestRelayStopsAtFaultBudget(t *testing.T) {
	// Closed listener so every attempt is a transport fault.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	alerts := &recordingAlerts{}
	svc := newRelayService(t, srv.URL, nil, config.RelayModeInline, alerts)
	out := svc.Relay(context.Background(), relayTestPayment(), "webhook_c")

	if out.Delivered {
		t.Fatalf("expected exhaustion")
	}
	if out.Attempts != 2 || out.Faults != 2 {
		t.Fatalf("expected the fault budget to cut retries, got %+v", out)
	}
	if alerts.count() != 1 {
		t.Fatalf("expected one terminal alert, got %d", alerts.count())
	}
}

func TestEnvelopeShape(t *testing.T) {
	svc := newRelayService(t, "http://localhost:0", nil, config.RelayModeInline, nil)
	envelope := svc.Envelope(relayTestPayment(), "webhook_d")

	if envelope["source"] != "paystack_webhook" {
		t.Fatalf("unexpected source %v", envelope["source"])
	}
	if envelope["webhook_id"] != "webhook_d" {
		t.Fatalf("unexpected webhook id %v", envelope["webhook_id"])
	}
	payment, ok := envelope["payment"].(map[string]any)
	if !ok {
		t.Fatalf("expected payment map, got %T", envelope["payment"])
	}
	if payment["transaction_id"] != "tx_1" || payment["transaction_reference"] != "ref_1" {
		t.Fatalf("unexpected identity fields %v %v", payment["transaction_id"], payment["transaction_reference"])
	}
	if payment["gateway_event"] != "charge.success" {
		t.Fatalf("unexpected gateway event %v", payment["gateway_event"])
	}
}

func setupQueueDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:relayq_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := db.Exec(`CREATE TABLE relay_jobs (
		id BIGINT PRIMARY KEY,
		webhook_id TEXT NOT NULL,
		payment TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		faults INT NOT NULL DEFAULT 0,
		last_error TEXT,
		run_after TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`).Error; err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	return db
}

func TestQueueModeEnqueuesAndWorkerDelivers(t *testing.T) {
	var notifies atomic.Int64
	srv := newDownstream(t, func(w http.ResponseWriter, r *http.Request) {
		notifies.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	defer srv.Close()

	db := setupQueueDB(t)
	svc := newRelayService(t, srv.URL, db, config.RelayModeQueue, nil)

	if err := svc.Dispatch(context.Background(), relayTestPayment(), "webhook_q"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	var status string
	if err := db.Raw("SELECT status FROM relay_jobs LIMIT 1").Scan(&status).Error; err != nil {
		t.Fatalf("scan status: %v", err)
	}
	if status != relay.JobStatusPending {
		t.Fatalf("expected pending job, got %q", status)
	}
	if notifies.Load() != 0 {
		t.Fatalf("queue mode must not call downstream inline")
	}

	node, err := snowflake.NewNode(31)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	worker := relay.NewWorker(relay.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Client: nexus.NewClient(nexus.Config{BaseURL: srv.URL}, zap.NewNop()),
		Clock:  clock.NewSystemClock(),
		Cfg: relay.Config{
			Mode:           config.RelayModeQueue,
			MaxAttempts:    3,
			MaxFaults:      2,
			AttemptTimeout: 2 * time.Second,
			RetryDelay:     time.Millisecond,
			PollInterval:   time.Millisecond,
			BatchSize:      10,
		},
	}, svc)

	if err := worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("worker run: %v", err)
	}

	if err := db.Raw("SELECT status FROM relay_jobs LIMIT 1").Scan(&status).Error; err != nil {
		t.Fatalf("scan status: %v", err)
	}
	if status != relay.JobStatusSucceeded {
		t.Fatalf("expected succeeded job, got %q", status)
	}
	if got := notifies.Load(); got != 1 {
		t.Fatalf("expected one delivery, got %d", got)
	}

	var attempts int
	if err := db.Raw("SELECT attempts FROM relay_jobs LIMIT 1").Scan(&attempts).Error; err != nil {
		t.Fatalf("scan attempts: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected one recorded attempt, got %d", attempts)
	}
}
