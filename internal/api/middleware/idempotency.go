package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"

	idempotencyKeyContextKey = "idempotency_key"
	maxIdempotencyKeyLength  = 255
)

// IdempotencyMiddleware validates the Idempotency-Key header of mutating requests and
// exposes it to handlers, which forward it to the payment provider. The provider
// replays the first response for a repeated key and rejects a key reused with a
// different cart.
func IdempotencyMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to POST/PUT/PATCH requests
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		if len(idempotencyKey) > maxIdempotencyKeyLength {
			logger.Warn("Rejected oversized idempotency key", zap.Int("length", len(idempotencyKey)))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key must be at most 255 characters"})
			c.Abort()
			return
		}

		c.Set(idempotencyKeyContextKey, idempotencyKey)
		c.Next()
	}
}

// GetIdempotencyKey returns the validated key of the request, if any
func GetIdempotencyKey(c *gin.Context) string {
	return c.GetString(idempotencyKeyContextKey)
}
