package nexus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/payrelay/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// Config holds downstream connection settings.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// APIError marks a response the downstream actually produced, as opposed to
// a transport fault where the call may never have arrived.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nexus api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Client talks to the downstream Nexus service with cached bearer auth.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger

	mu    sync.Mutex
	token string
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log.Named("nexus.client"),
	}
}

// Authenticate returns a bearer token, reusing the cached one when present.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	body, err := json.Marshal(map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if strings.TrimSpace(parsed.Token) == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Body: "no token in login response"}
	}

	c.mu.Lock()
	c.token = parsed.Token
	c.mu.Unlock()

	return parsed.Token, nil
}

// ClearToken drops the cached token so the next call re-authenticates.
func (c *Client) ClearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// NotifyPayment posts the payment envelope to the downstream notify endpoint.
func (c *Client) NotifyPayment(ctx context.Context, payload map[string]any) error {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/payments/notify", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		req.Header.Set("X-Correlation-Id", cid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.ClearToken()
		}
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return nil
}
