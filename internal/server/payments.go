package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
)

type peerPaymentRequest struct {
	Payment map[string]any `json:"payment" binding:"required"`
}

// HandlePeerPayment stores a payment snapshot pushed by a trusted peer
// service. Amounts arrive in major units; nothing is forwarded onward.
func (s *Server) HandlePeerPayment(c *gin.Context) {
	var req peerPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	id, _, err := s.paymentSvc.UpsertFromPeer(c.Request.Context(), req.Payment)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrInvalidPayload) ||
			errors.Is(err, paymentdomain.ErrMissingTransactionID) {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "unable to store payment",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    "payment recorded",
		"payment_id": id.String(),
	})
}

func (s *Server) peerPushRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.peerLimiter.AllowSource(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Fail open: a broken limiter should not block trusted peers.
			c.Next()
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}
