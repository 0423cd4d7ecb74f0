package postgres

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/repository"
)

// NewRepositories creates a new set of repositories
func NewRepositories(db *sql.DB, claimTTL time.Duration, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Notification: NewNotificationRepository(db, claimTTL, logger),
	}
}
