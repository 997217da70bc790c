package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payrelay/internal/payment/domain"
	pkgdb "github.com/smallbiznis/payrelay/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, gateway, event, event_timestamp, transaction_id, reference,
	status_raw, status, amount, requested_amount, charged_amount, merchant_fee,
	currency, payment_type, channel, card_issuer, card_type, card_country,
	email, domain, gateway_response, paid_at, psp_created_at,
	signature_valid, webhook_id, meta_data, created_at, updated_at`

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payments
		 WHERE reference = ?
		 LIMIT 1`,
		reference,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payments
		 WHERE transaction_id = ?
		 LIMIT 1`,
		transactionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// Upsert applies one-row-per-transaction semantics: update by reference,
// then by transaction id, then insert. A duplicate key on insert means a
// concurrent writer won the race; the lookup is retried once so the late
// delivery lands as an update. A payment without either key always inserts,
// as its transaction id is stored as NULL and escapes the unique index.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, payment *domain.Payment) (snowflake.ID, bool, error) {
	for attempt := 0; ; attempt++ {
		if ref := payment.ReferenceValue(); ref != "" {
			updated, err := r.overwrite(ctx, db, "reference", ref, payment)
			if err != nil {
				return 0, false, err
			}
			if updated {
				existing, err := r.FindByReference(ctx, db, ref)
				if err != nil {
					return 0, false, err
				}
				if existing != nil {
					payment.ID = existing.ID
					return existing.ID, false, nil
				}
			}
		}

		if payment.TransactionID != "" {
			updated, err := r.overwrite(ctx, db, "transaction_id", payment.TransactionID, payment)
			if err != nil {
				return 0, false, err
			}
			if updated {
				existing, err := r.FindByTransactionID(ctx, db, payment.TransactionID)
				if err != nil {
					return 0, false, err
				}
				if existing != nil {
					payment.ID = existing.ID
					return existing.ID, false, nil
				}
			}
		}

		err := r.insert(ctx, db, payment)
		if err == nil {
			return payment.ID, true, nil
		}
		if pkgdb.IsDuplicateKeyErr(err) && attempt == 0 {
			continue
		}
		return 0, false, err
	}
}

func (r *repo) overwrite(ctx context.Context, db *gorm.DB, column, key string, p *domain.Payment) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments SET
			gateway = ?, event = ?, event_timestamp = ?, transaction_id = ?, reference = ?,
			status_raw = ?, status = ?, amount = ?, requested_amount = ?, charged_amount = ?,
			merchant_fee = ?, currency = ?, payment_type = ?, channel = ?,
			card_issuer = ?, card_type = ?, card_country = ?,
			email = ?, domain = ?, gateway_response = ?, paid_at = ?, psp_created_at = ?,
			signature_valid = ?, webhook_id = ?, meta_data = ?, updated_at = ?
		 WHERE `+column+` = ?`,
		p.Gateway,
		p.Event,
		p.EventTimestamp,
		nullableKey(p.TransactionID),
		p.Reference,
		p.StatusRaw,
		p.Status,
		p.Amount,
		p.RequestedAmount,
		p.ChargedAmount,
		p.MerchantFee,
		p.Currency,
		p.PaymentType,
		p.Channel,
		p.CardIssuer,
		p.CardType,
		p.CardCountry,
		p.Email,
		p.Domain,
		p.GatewayResponse,
		p.PaidAt,
		p.PSPCreatedAt,
		p.SignatureValid,
		p.WebhookID,
		p.MetaData,
		p.UpdatedAt,
		key,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) insert(ctx context.Context, db *gorm.DB, p *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, gateway, event, event_timestamp, transaction_id, reference,
			status_raw, status, amount, requested_amount, charged_amount, merchant_fee,
			currency, payment_type, channel, card_issuer, card_type, card_country,
			email, domain, gateway_response, paid_at, psp_created_at,
			signature_valid, webhook_id, meta_data, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Gateway,
		p.Event,
		p.EventTimestamp,
		nullableKey(p.TransactionID),
		p.Reference,
		p.StatusRaw,
		p.Status,
		p.Amount,
		p.RequestedAmount,
		p.ChargedAmount,
		p.MerchantFee,
		p.Currency,
		p.PaymentType,
		p.Channel,
		p.CardIssuer,
		p.CardType,
		p.CardCountry,
		p.Email,
		p.Domain,
		p.GatewayResponse,
		p.PaidAt,
		p.PSPCreatedAt,
		p.SignatureValid,
		p.WebhookID,
		p.MetaData,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func nullableKey(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
