package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/payrelay/internal/observability/context"
	"github.com/smallbiznis/payrelay/pkg/telemetry/correlation"
)

// HandlePaystackWebhook ingests one gateway delivery. The gateway is
// always answered 200 so it never retries on our behalf; failures show
// up only in the body status and in logs.
func (s *Server) HandlePaystackWebhook(c *gin.Context) {
	webhookID := correlation.NewWebhookID()
	c.Set("webhook_id", webhookID)
	ctx := obscontext.WithWebhookID(c.Request.Context(), webhookID)
	c.Request = c.Request.WithContext(ctx)

	ack := func(status, message string) {
		c.JSON(http.StatusOK, gin.H{
			"status":     status,
			"message":    message,
			"webhook_id": webhookID,
			"timestamp":  s.clock.Now().Format(time.RFC3339),
		})
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		ack("error", "unable to read webhook body")
		return
	}

	result, err := s.paymentSvc.IngestWebhook(ctx, payload, c.Request.Header, webhookID)
	if err != nil {
		ack("error", "webhook could not be processed")
		return
	}

	if !result.Persisted {
		ack("success", "webhook acknowledged")
		return
	}
	ack("success", "webhook processed")
}
