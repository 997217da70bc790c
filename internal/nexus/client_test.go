package nexus_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/smallbiznis/payrelay/internal/nexus"
	"go.uber.org/zap"
)

func TestNotifyPaymentReusesToken(t *testing.T) {
	var logins, notifies atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			logins.Add(1)
			var creds map[string]string
			if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
				t.Fatalf("decode login body: %v", err)
			}
			if creds["username"] != "relay" || creds["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok_1"})
		case "/api/payments/notify":
			notifies.Add(1)
			if r.Header.Get("Authorization") != "Bearer tok_1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := nexus.NewClient(nexus.Config{
		BaseURL:  srv.URL,
		Username: "relay",
		Password: "secret",
	}, zap.NewNop())

	ctx := context.Background()
	payload := map[string]any{"webhook_id": "webhook_x"}

	if err := client.NotifyPayment(ctx, payload); err != nil {
		t.Fatalf("first notify: %v", err)
	}
	if err := client.NotifyPayment(ctx, payload); err != nil {
		t.Fatalf("second notify: %v", err)
	}

	if got := logins.Load(); got != 1 {
		t.Fatalf("expected a single login, got %d", got)
	}
	if got := notifies.Load(); got != 2 {
		t.Fatalf("expected two notify calls, got %d", got)
	}
}

func TestNotifyPaymentClearsTokenOn401(t *testing.T) {
	var logins atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			logins.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok_stale"})
		case "/api/payments/notify":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := nexus.NewClient(nexus.Config{BaseURL: srv.URL}, zap.NewNop())
	ctx := context.Background()

	err := client.NotifyPayment(ctx, map[string]any{})
	var apiErr *nexus.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}

	// Token was dropped, so the next call re-authenticates.
	_ = client.NotifyPayment(ctx, map[string]any{})
	if got := logins.Load(); got != 2 {
		t.Fatalf("expected re-authentication after 401, got %d logins", got)
	}
}

func TestAuthenticateRejectsEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	client := nexus.NewClient(nexus.Config{BaseURL: srv.URL}, zap.NewNop())

	_, err := client.Authenticate(context.Background())
	var apiErr *nexus.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError for missing token, got %v", err)
	}
}
