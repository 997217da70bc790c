package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payrelay/internal/config"
)

const keyPeerPushSource = "relay:peer:push:%s"

// PeerPushLimiter throttles the trusted-peer payment endpoint per caller
// address. The webhook endpoint is deliberately not limited; the gateway
// must always get its ack.
type PeerPushLimiter struct {
	enabled bool

	bucket *TokenBucket

	rate  float64
	burst int
}

func NewPeerPushLimiter(cfg config.Config, client *redis.Client) *PeerPushLimiter {
	if client == nil {
		return nil
	}
	if cfg.PeerPushRatePerSec <= 0 || cfg.PeerPushBurst <= 0 {
		return nil
	}
	return &PeerPushLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.PeerPushRatePerSec,
		burst:   cfg.PeerPushBurst,
	}
}

func (l *PeerPushLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowSource consumes one token for the caller, keyed by remote address.
func (l *PeerPushLimiter) AllowSource(ctx context.Context, source string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyPeerPushSource, strings.TrimSpace(source))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
