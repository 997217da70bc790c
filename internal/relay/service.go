package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/nexus"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	"github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/providers/alert"
	"github.com/smallbiznis/payrelay/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const relaySource = "paystack_webhook"

// Config bounds the retry budget for one relay.
type Config struct {
	Mode           string
	MaxAttempts    int
	MaxFaults      int
	AttemptTimeout time.Duration
	RetryDelay     time.Duration
	PollInterval   time.Duration
	BatchSize      int
}

// Outcome summarizes one relay after the retry budget is spent.
type Outcome struct {
	Delivered bool
	Attempts  int
	Faults    int
	LastError string
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Client     *nexus.Client
	Clock      clock.Clock
	Cfg        Config
	Alerts     alert.Provider      `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
	Locker     *ratelimit.Locker   `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	client     *nexus.Client
	clock      clock.Clock
	cfg        Config
	alerts     alert.Provider
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("relay.service"),
		genID:      p.GenID,
		client:     p.Client,
		clock:      p.Clock,
		cfg:        p.Cfg,
		alerts:     p.Alerts,
		obsMetrics: p.ObsMetrics,
	}
}

// Dispatch relays inline or enqueues a durable job depending on the mode.
func (s *Service) Dispatch(ctx context.Context, payment *domain.Payment, webhookID string) error {
	if payment == nil {
		return domain.ErrInvalidPayload
	}
	if s.cfg.Mode == config.RelayModeQueue {
		return s.enqueue(ctx, payment, webhookID)
	}

	outcome := s.Relay(ctx, payment, webhookID)
	if !outcome.Delivered {
		return fmt.Errorf("relay exhausted after %d attempts: %s", outcome.Attempts, outcome.LastError)
	}
	return nil
}

// Relay posts the payment envelope downstream, retrying within the budget.
// Responses the downstream produced only consume attempts; transport faults
// also consume the fault budget.
func (s *Service) Relay(ctx context.Context, payment *domain.Payment, webhookID string) Outcome {
	start := time.Now()
	envelope := s.Envelope(payment, webhookID)
	log := s.log.With(
		zap.String("webhook_id", webhookID),
		zap.String("transaction_id", payment.TransactionID),
	)

	var out Outcome
	for {
		out.Attempts++
		if s.obsMetrics != nil {
			s.obsMetrics.IncRelayAttempt()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		err := s.client.NotifyPayment(attemptCtx, envelope)
		cancel()

		if err == nil {
			out.Delivered = true
			if s.obsMetrics != nil {
				s.obsMetrics.ObserveRelay(obsmetrics.RelayOutcomeDelivered, time.Since(start))
			}
			log.Info("payment relayed", zap.Int("attempts", out.Attempts))
			return out
		}

		out.LastError = err.Error()
		var apiErr *nexus.APIError
		if !errors.As(err, &apiErr) {
			out.Faults++
		}
		log.Warn("relay attempt failed",
			zap.Int("attempt", out.Attempts),
			zap.Int("faults", out.Faults),
			zap.Error(err),
		)

		if out.Attempts >= s.cfg.MaxAttempts || out.Faults >= s.cfg.MaxFaults {
			break
		}

		select {
		case <-ctx.Done():
			out.LastError = ctx.Err().Error()
			return s.exhausted(ctx, log, out, payment, webhookID, start)
		case <-time.After(s.cfg.RetryDelay):
		}
	}

	return s.exhausted(ctx, log, out, payment, webhookID, start)
}

func (s *Service) exhausted(ctx context.Context, log *zap.Logger, out Outcome, payment *domain.Payment, webhookID string, start time.Time) Outcome {
	if s.obsMetrics != nil {
		s.obsMetrics.ObserveRelay(obsmetrics.RelayOutcomeExhausted, time.Since(start))
	}
	log.Error("relay exhausted",
		zap.Int("attempts", out.Attempts),
		zap.Int("faults", out.Faults),
		zap.String("last_error", out.LastError),
	)
	if s.alerts != nil {
		_ = s.alerts.Notify(ctx, "payment_relay_exhausted", map[string]any{
			"webhook_id":     webhookID,
			"transaction_id": payment.TransactionID,
			"reference":      payment.ReferenceValue(),
			"attempts":       out.Attempts,
			"faults":         out.Faults,
			"last_error":     out.LastError,
		})
	}
	return out
}

// Envelope builds the notify payload posted to the downstream service.
func (s *Service) Envelope(p *domain.Payment, webhookID string) map[string]any {
	return map[string]any{
		"payment":    nexusPayment(p),
		"webhook_id": webhookID,
		"source":     relaySource,
		"timestamp":  s.clock.Now().Format(time.RFC3339),
	}
}

func nexusPayment(p *domain.Payment) map[string]any {
	payment := map[string]any{
		"gateway":               p.Gateway,
		"gateway_event":         nil,
		"webhook_timestamp":     timeOrNil(p.EventTimestamp),
		"signature_valid":       p.SignatureValid,
		"transaction_id":        p.TransactionID,
		"transaction_reference": nil,
		"status_raw":            p.StatusRaw,
		"status":                p.Status,
		"amount":                nil,
		"currency":              p.Currency,
		"payment_type":          stringOrNil(p.PaymentType),
		"channel":               stringOrNil(p.Channel),
		"created_at_psp":        timeOrNil(p.PSPCreatedAt),
		"paid_at_psp":           timeOrNil(p.PaidAt),
	}
	if p.Event != nil {
		payment["gateway_event"] = *p.Event
	}
	if p.Reference != nil {
		payment["transaction_reference"] = *p.Reference
	}
	if p.RequestedAmount.Valid {
		payment["amount"] = p.RequestedAmount.Decimal
	} else if p.Amount.Valid {
		payment["amount"] = p.Amount.Decimal
	}
	return payment
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
