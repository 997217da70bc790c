package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/payment/normalize"
	"github.com/smallbiznis/payrelay/internal/payment/signature"
	"github.com/smallbiznis/payrelay/internal/paystack"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const chargeEventPrefix = "charge."

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	Relay      paymentdomain.Relay
	Clock      clock.Clock
	Cfg        config.Config
	Paystack   *paystack.Client    `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	relay      paymentdomain.Relay
	clock      clock.Clock
	cfg        config.Config
	paystack   *paystack.Client
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		relay:      p.Relay,
		clock:      p.Clock,
		cfg:        p.Cfg,
		paystack:   p.Paystack,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) defaults() normalize.Defaults {
	return normalize.Defaults{Currency: s.cfg.DefaultCurrency}
}

// IngestWebhook verifies, filters, normalizes, persists, and relays one
// gateway delivery. Persistence proceeds even when the signature fails;
// the flag rides along for downstream consumers.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header, webhookID string) (paymentdomain.IngestResult, error) {
	result := paymentdomain.IngestResult{WebhookID: webhookID}
	log := s.log.With(zap.String("webhook_id", webhookID))

	result.SignatureValid = signature.Verify(payload, headers.Get(signature.Header), s.cfg.PaystackSecretKey)
	if !result.SignatureValid {
		log.Warn("webhook signature did not verify")
		if s.obsMetrics != nil {
			s.obsMetrics.IncSignatureFailure()
		}
	}

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		log.Warn("webhook payload is not valid json", zap.Error(err))
		if s.obsMetrics != nil {
			s.obsMetrics.IncWebhookReceived("paystack", obsmetrics.WebhookOutcomeInvalid)
		}
		return result, paymentdomain.ErrInvalidPayload
	}

	event, _ := body["event"].(string)
	result.Event = event
	if !strings.HasPrefix(event, chargeEventPrefix) {
		log.Info("webhook event outside charge namespace, acknowledged and discarded",
			zap.String("event", event))
		if s.obsMetrics != nil {
			s.obsMetrics.IncWebhookReceived("paystack", obsmetrics.WebhookOutcomeIgnored)
		}
		return result, nil
	}

	record := normalize.FromWebhook(body, s.defaults())
	record.SignatureValid = result.SignatureValid
	record.WebhookID = webhookID
	record.MetaData = datatypes.JSON(payload)

	now := s.clock.Now()
	if record.EventTimestamp == nil {
		record.EventTimestamp = &now
	}
	record.ID = s.genID.Generate()
	record.CreatedAt = now
	record.UpdatedAt = now

	id, created, err := s.repo.Upsert(ctx, s.db, record)
	if err != nil {
		log.Error("persist webhook payment failed",
			zap.String("transaction_id", record.TransactionID),
			zap.Error(err))
		if s.obsMetrics != nil {
			s.obsMetrics.IncWebhookReceived("paystack", obsmetrics.WebhookOutcomeFailed)
		}
		return result, err
	}
	result.Persisted = true
	result.Created = created
	result.PaymentID = id

	if s.obsMetrics != nil {
		s.obsMetrics.IncWebhookReceived("paystack", obsmetrics.WebhookOutcomePersisted)
		s.obsMetrics.IncUpsert(string(paymentdomain.OriginWebhook), created)
	}
	log.Info("webhook payment stored",
		zap.String("transaction_id", record.TransactionID),
		zap.String("reference", record.ReferenceValue()),
		zap.Bool("created", created))

	if s.cfg.PaystackVerifyAfterWebhook {
		s.verifyAndReconcile(ctx, log, record)
	}

	if err := s.relay.Dispatch(ctx, record, webhookID); err != nil {
		// The gateway still gets its ack; relay exhaustion was already
		// alerted by the relay pipeline.
		log.Error("relay dispatch failed", zap.Error(err))
	}

	return result, nil
}

// UpsertFromPeer stores a trusted peer payment snapshot.
func (s *Service) UpsertFromPeer(ctx context.Context, payload map[string]any) (snowflake.ID, bool, error) {
	record, err := normalize.FromPeerPush(payload, s.defaults())
	if err != nil {
		return 0, false, err
	}
	if strings.TrimSpace(record.StatusRaw) == "" {
		return 0, false, paymentdomain.ErrInvalidPayload
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, false, paymentdomain.ErrInvalidPayload
	}
	record.MetaData = datatypes.JSON(raw)

	now := s.clock.Now()
	record.ID = s.genID.Generate()
	record.CreatedAt = now
	record.UpdatedAt = now

	id, created, err := s.repo.Upsert(ctx, s.db, record)
	if err != nil {
		s.log.Error("persist peer payment failed",
			zap.String("transaction_id", record.TransactionID),
			zap.Error(err))
		return 0, false, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.IncUpsert(string(paymentdomain.OriginPeerPush), created)
	}
	s.log.Info("peer payment stored",
		zap.String("transaction_id", record.TransactionID),
		zap.Bool("created", created))

	return id, created, nil
}

// verifyAndReconcile re-reads the transaction from the gateway verify API
// and overwrites the stored row with the authoritative snapshot. Best
// effort: failures are logged, never surfaced to the caller.
func (s *Service) verifyAndReconcile(ctx context.Context, log *zap.Logger, stored *paymentdomain.Payment) {
	if s.paystack == nil {
		return
	}
	reference := stored.ReferenceValue()
	if reference == "" {
		return
	}

	resp, err := s.paystack.VerifyTransactionByReference(ctx, reference)
	if err != nil {
		log.Warn("post-webhook verification failed", zap.String("reference", reference), zap.Error(err))
		return
	}

	record := normalize.FromVerifyResponse(resp, s.defaults())
	if record.TransactionID == "" {
		log.Warn("verify response missing transaction id", zap.String("reference", reference))
		return
	}
	record.SignatureValid = stored.SignatureValid
	record.WebhookID = stored.WebhookID
	record.Event = stored.Event

	now := s.clock.Now()
	if record.EventTimestamp == nil {
		record.EventTimestamp = stored.EventTimestamp
	}
	record.ID = s.genID.Generate()
	record.CreatedAt = now
	record.UpdatedAt = now

	id, created, err := s.repo.Upsert(ctx, s.db, record)
	if err != nil {
		log.Warn("verify reconciliation upsert failed", zap.String("reference", reference), zap.Error(err))
		return
	}
	if s.obsMetrics != nil {
		s.obsMetrics.IncUpsert(string(paymentdomain.OriginVerifyAPI), created)
	}
	log.Info("verify reconciliation applied",
		zap.String("reference", reference),
		zap.String("payment_id", id.String()),
		zap.Bool("created", created))
}
