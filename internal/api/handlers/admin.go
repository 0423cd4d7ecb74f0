package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/repository"
)

// HandleListNotifications handles GET /api/admin/notifications: the dedup ledger, newest first
func HandleListNotifications(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Parse query parameters
		limitStr := c.DefaultQuery("limit", "50")
		offsetStr := c.DefaultQuery("offset", "0")

		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			limit = 50
		}

		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			offset = 0
		}

		records, err := repos.Notification.List(c.Request.Context(), limit, offset)
		if err != nil {
			logger.Error("Failed to list notifications", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		// Build response
		notifications := make([]gin.H, len(records))
		for i, rec := range records {
			var sentAt *string
			if rec.SentAt != nil {
				s := rec.SentAt.UTC().Format(time.RFC3339)
				sentAt = &s
			}
			notifications[i] = gin.H{
				"session_id": rec.SessionID,
				"kind":       rec.Kind,
				"status":     rec.Status,
				"claimed_at": rec.ClaimedAt.UTC().Format(time.RFC3339),
				"sent_at":    sentAt,
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"notifications": notifications,
			"limit":         limit,
			"offset":        offset,
		})
	}
}
