package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Origin identifies where a payment snapshot came from.
type Origin string

const (
	OriginWebhook   Origin = "webhook"
	OriginVerifyAPI Origin = "verify_api"
	OriginPeerPush  Origin = "peer_push"
)

// Payment is the canonical record for one observed payment transaction.
type Payment struct {
	ID              snowflake.ID        `json:"id" gorm:"primaryKey"`
	Gateway         string              `json:"gateway" gorm:"type:text;not null"`
	Event           *string             `json:"event" gorm:"type:text"`
	EventTimestamp  *time.Time          `json:"event_timestamp"`
	TransactionID   string              `json:"transaction_id" gorm:"type:text"`
	Reference       *string             `json:"reference" gorm:"type:text"`
	StatusRaw       string              `json:"status_raw" gorm:"type:text"`
	Status          string              `json:"status" gorm:"type:text"`
	Amount          decimal.NullDecimal `json:"amount" gorm:"type:decimal(15,2)"`
	RequestedAmount decimal.NullDecimal `json:"requested_amount" gorm:"type:decimal(15,2)"`
	ChargedAmount   decimal.NullDecimal `json:"charged_amount" gorm:"type:decimal(15,2)"`
	MerchantFee     decimal.NullDecimal `json:"merchant_fee" gorm:"type:decimal(15,2)"`
	Currency        string              `json:"currency" gorm:"type:varchar(3);not null"`
	PaymentType     string              `json:"payment_type" gorm:"type:text"`
	Channel         string              `json:"channel" gorm:"type:text"`
	CardIssuer      string              `json:"card_issuer" gorm:"type:text"`
	CardType        string              `json:"card_type" gorm:"type:text"`
	CardCountry     string              `json:"card_country" gorm:"type:text"`
	Email           string              `json:"email" gorm:"type:text"`
	Domain          string              `json:"domain" gorm:"type:text"`
	GatewayResponse string              `json:"gateway_response" gorm:"type:text"`
	PaidAt          *time.Time          `json:"paid_at"`
	PSPCreatedAt    *time.Time          `json:"psp_created_at" gorm:"column:psp_created_at"`
	SignatureValid  bool                `json:"signature_valid" gorm:"not null;default:false"`
	WebhookID       string              `json:"webhook_id" gorm:"type:text"`
	MetaData        datatypes.JSON      `json:"meta_data" gorm:"type:jsonb"`
	CreatedAt       time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time           `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// ReferenceValue returns the reference or "" when unset.
func (p *Payment) ReferenceValue() string {
	if p == nil || p.Reference == nil {
		return ""
	}
	return *p.Reference
}
