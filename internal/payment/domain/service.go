package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidPayload       = errors.New("invalid_payload")
	ErrMissingTransactionID = errors.New("missing_transaction_id")
	ErrNotFound             = errors.New("payment_not_found")
)

// IngestResult reports what happened to one webhook delivery.
type IngestResult struct {
	WebhookID      string
	Event          string
	SignatureValid bool
	Persisted      bool
	Created        bool
	PaymentID      snowflake.ID
}

// Service ingests gateway deliveries and peer pushes into payment records.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header, webhookID string) (IngestResult, error)
	UpsertFromPeer(ctx context.Context, payload map[string]any) (snowflake.ID, bool, error)
}

// Repository persists payment records with dedup on reference and transaction id.
type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, payment *Payment) (snowflake.ID, bool, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*Payment, error)
	FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*Payment, error)
}

// Relay hands a stored payment to the downstream notifier.
type Relay interface {
	Dispatch(ctx context.Context, payment *Payment, webhookID string) error
}
