package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/payrelay/internal/payment/domain"
)

const gatewayPaystack = "paystack"

// Defaults supplies values used when the payload omits a field.
type Defaults struct {
	Currency string
}

// Record maps a raw payload into a canonical payment for the given origin.
func Record(origin domain.Origin, payload map[string]any, d Defaults) (*domain.Payment, error) {
	switch origin {
	case domain.OriginWebhook:
		return FromWebhook(payload, d), nil
	case domain.OriginVerifyAPI:
		return FromVerifyResponse(payload, d), nil
	case domain.OriginPeerPush:
		return FromPeerPush(payload, d)
	default:
		return nil, domain.ErrInvalidPayload
	}
}

// FromWebhook maps a gateway webhook body. Amounts arrive in minor units.
func FromWebhook(payload map[string]any, d Defaults) *domain.Payment {
	data := asMap(payload["data"])
	customer := asMap(data["customer"])
	authorization := asMap(data["authorization"])

	channel := firstString(data, "channel")
	if channel == "" {
		channel = firstString(authorization, "channel")
	}

	rawStatus := firstString(data, "status")

	requested := minorAmount(data, "requested_amount")
	charged := minorAmount(data, "charged_amount")
	if !charged.Valid {
		charged = minorAmount(data, "amount")
	}
	amount := charged
	if !amount.Valid {
		amount = requested
	}

	email := firstString(customer, "email")
	if email == "" {
		email = firstString(data, "email")
	}

	p := &domain.Payment{
		Gateway:         gatewayPaystack,
		Event:           optionalString(payload, "event"),
		EventTimestamp:  ParseTime(payload["timestamp"]),
		TransactionID:   stringValue(data["id"]),
		Reference:       optionalString(data, "reference"),
		StatusRaw:       rawStatus,
		Status:          ProcessStatus(rawStatus),
		Amount:          amount,
		RequestedAmount: requested,
		ChargedAmount:   charged,
		MerchantFee:     minorAmount(data, "fees"),
		Currency:        currencyOrDefault(firstString(data, "currency"), d),
		PaymentType:     channel,
		Channel:         channel,
		CardIssuer:      firstString(authorization, "bank", "card_issuer"),
		CardType:        firstString(authorization, "card_type"),
		CardCountry:     firstString(authorization, "country_code"),
		Email:           email,
		Domain:          firstString(data, "domain"),
		GatewayResponse: firstString(data, "gateway_response"),
		PaidAt:          ParseTime(data["paid_at"]),
		PSPCreatedAt:    ParseTime(data["created_at"]),
	}
	if p.CardIssuer == "" {
		p.CardIssuer = firstString(data, "card_issuer")
	}
	if p.CardType == "" {
		p.CardType = firstString(data, "card_type")
	}
	if p.CardCountry == "" {
		p.CardCountry = firstString(data, "card_country")
	}
	return p
}

// FromVerifyResponse maps a gateway verify API response. The transaction
// object lives under "data" and uses the webhook's minor-unit encoding.
func FromVerifyResponse(payload map[string]any, d Defaults) *domain.Payment {
	p := FromWebhook(map[string]any{"data": payload["data"]}, d)
	p.Event = nil
	return p
}

// FromPeerPush maps a trusted peer payload. Amounts arrive in major units
// and a transaction id is mandatory.
func FromPeerPush(payload map[string]any, d Defaults) (*domain.Payment, error) {
	transactionID := stringValue(payload["transaction_id"])
	if strings.TrimSpace(transactionID) == "" {
		return nil, domain.ErrMissingTransactionID
	}

	rawStatus := firstString(payload, "status")

	reference := firstString(payload, "reference", "transaction_reference", "tx_ref")

	requested := majorAmount(payload, "requested_amount", "amount_requested")
	charged := majorAmount(payload, "charged_amount", "amount_charged", "amount")
	amount := charged
	if !amount.Valid {
		amount = requested
	}

	fee := majorAmount(payload, "merchant_fee", "fees")

	channel := firstString(payload, "payment_type", "channel")

	createdAt := ParseTime(payload["created_at"])
	if createdAt == nil {
		createdAt = ParseTime(payload["psp_created_at"])
	}
	paidAt := ParseTime(payload["paid_at"])
	if paidAt == nil {
		paidAt = ParseTime(payload["psp_paid_at"])
	}

	gateway := firstString(payload, "gateway")
	if gateway == "" {
		gateway = gatewayPaystack
	}

	p := &domain.Payment{
		Gateway:         gateway,
		Event:           optionalString(payload, "event"),
		EventTimestamp:  ParseTime(payload["timestamp"]),
		TransactionID:   transactionID,
		StatusRaw:       rawStatus,
		Status:          ProcessStatus(rawStatus),
		Amount:          amount,
		RequestedAmount: requested,
		ChargedAmount:   charged,
		MerchantFee:     fee,
		Currency:        currencyOrDefault(firstString(payload, "currency"), d),
		PaymentType:     channel,
		Channel:         channel,
		CardIssuer:      firstString(payload, "card_issuer"),
		CardType:        firstString(payload, "card_type"),
		CardCountry:     firstString(payload, "card_country"),
		Email:           firstString(payload, "email", "customer_email"),
		Domain:          firstString(payload, "domain"),
		GatewayResponse: firstString(payload, "gateway_response"),
		PaidAt:          paidAt,
		PSPCreatedAt:    createdAt,
	}
	if reference != "" {
		p.Reference = &reference
	}
	return p, nil
}

// ProcessStatus maps a raw gateway status to the processed status.
// Identity for now; future mappings land here without touching callers.
func ProcessStatus(raw string) string {
	return raw
}

const fallbackTimeLayout = "2006-01-02 15:04:05"

// ParseTime accepts a native time, a map wrapping a "date" key, or a string
// in RFC3339(-nano) with a plain datetime fallback. Returns nil on exhaustion.
func ParseTime(value any) *time.Time {
	switch t := value.(type) {
	case nil:
		return nil
	case time.Time:
		utc := t.UTC()
		return &utc
	case *time.Time:
		if t == nil {
			return nil
		}
		utc := t.UTC()
		return &utc
	case map[string]any:
		return ParseTime(t["date"])
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			utc := parsed.UTC()
			return &utc
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			utc := parsed.UTC()
			return &utc
		}
		if parsed, err := time.Parse(fallbackTimeLayout, s); err == nil {
			utc := parsed.UTC()
			return &utc
		}
		return nil
	default:
		return nil
	}
}

func asMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringValue(m[key]); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func optionalString(m map[string]any, key string) *string {
	s := stringValue(m[key])
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func stringValue(value any) string {
	switch t := value.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// minorAmount reads a minor-unit amount and scales it down by 100.
func minorAmount(m map[string]any, keys ...string) decimal.NullDecimal {
	for _, key := range keys {
		if d, ok := decimalFromAny(m[key]); ok {
			return decimal.NewNullDecimal(d.Shift(-2))
		}
	}
	return decimal.NullDecimal{}
}

// majorAmount reads an amount already expressed in major units.
func majorAmount(m map[string]any, keys ...string) decimal.NullDecimal {
	for _, key := range keys {
		if d, ok := decimalFromAny(m[key]); ok {
			return decimal.NewNullDecimal(d)
		}
	}
	return decimal.NullDecimal{}
}

func decimalFromAny(value any) (decimal.Decimal, bool) {
	switch t := value.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

func currencyOrDefault(currency string, d Defaults) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency != "" {
		return currency
	}
	def := strings.ToUpper(strings.TrimSpace(d.Currency))
	if def != "" {
		return def
	}
	return "NGN"
}
