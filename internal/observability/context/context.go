package context

import "context"

type contextKey string

const (
	requestIDKey contextKey = "observability.request_id"
	webhookIDKey contextKey = "observability.webhook_id"
)

// WithRequestID stores the inbound request id on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithWebhookID stores the webhook delivery id on the context.
func WithWebhookID(ctx context.Context, webhookID string) context.Context {
	if webhookID == "" {
		return ctx
	}
	return context.WithValue(ctx, webhookIDKey, webhookID)
}

// WebhookIDFromContext returns the webhook delivery id, or "" when absent.
func WebhookIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(webhookIDKey).(string); ok {
		return v
	}
	return ""
}
