package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Config holds gateway API settings.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client calls the gateway's transaction verify API.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log.Named("paystack.client"),
	}
}

// VerifyTransaction fetches a transaction by gateway id.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (map[string]any, error) {
	return c.get(ctx, "/transactions/"+url.PathEscape(transactionID)+"/verify")
}

// VerifyTransactionByReference fetches a transaction by merchant reference.
func (c *Client) VerifyTransactionByReference(ctx context.Context, reference string) (map[string]any, error) {
	return c.get(ctx, "/transactions/verify_by_reference?tx_ref="+url.QueryEscape(reference))
}

func (c *Client) get(ctx context.Context, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("paystack verify failed: status=%d body=%s", resp.StatusCode, body)
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return parsed, nil
}
