package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/config"
	"github.com/Mide008/Roothaus-1/internal/service"
	pkgerrors "github.com/Mide008/Roothaus-1/pkg/errors"
)

// maxWebhookBody bounds the payload read before signature verification
const maxWebhookBody = 1 << 20

// WebhookProcessor handles one raw payment webhook delivery
type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signature string) (*service.Result, error)
}

// HandleStripeWebhook handles POST /webhooks/stripe.
// Configure the Stripe webhook endpoint for checkout.session.completed; other
// event types are acknowledged and ignored. A 500 makes Stripe redeliver, and
// redeliveries only send the emails that did not go out.
func HandleStripeWebhook(cfg *config.Config, processor WebhookProcessor, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(cfg.Stripe.WebhookSecret) == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stripe webhook not configured"})
			return
		}

		// Read raw body (the signature is computed over raw bytes)
		bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		result, err := processor.Process(c.Request.Context(), bodyBytes, c.GetHeader("Stripe-Signature"))
		if err != nil {
			var sigErr *pkgerrors.ErrSignature
			if errors.As(err, &sigErr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		logger.Info("Webhook processed",
			zap.String("event_id", result.EventID),
			zap.String("event_type", result.EventType),
			zap.String("state", string(result.State)),
			zap.Int("sent", len(result.Sent)),
			zap.Int("skipped", len(result.Skipped)),
		)
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
