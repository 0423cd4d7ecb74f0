package repository

import (
	"context"
	"time"

	"github.com/Mide008/Roothaus-1/internal/domain"
)

// Claim is the outcome of NotificationRepository.Claim
type Claim struct {
	// Acquired is true when the caller now holds the notification
	Acquired bool
	// Status is the state of the existing row when the claim was not acquired:
	// sent means done, pending means another delivery is still sending
	Status domain.NotificationStatus
	// ClaimedAt identifies the caller's claim; Release needs it back
	ClaimedAt time.Time
}

// NotificationRepository is the notification dedup ledger: one row per
// (checkout session, notification kind).
type NotificationRepository interface {
	// Claim reserves a notification for sending. It is not acquired when the
	// notification was already sent or is claimed by a live delivery. A pending
	// claim older than the claim TTL is stale and can be claimed again.
	Claim(ctx context.Context, sessionID string, kind domain.NotificationKind) (Claim, error)
	// MarkSent records a successful send
	MarkSent(ctx context.Context, sessionID string, kind domain.NotificationKind) error
	// Release drops the pending claim taken at claimedAt so a redelivery can
	// retry the send. A claim taken over by another delivery is left alone.
	Release(ctx context.Context, sessionID string, kind domain.NotificationKind, claimedAt time.Time) error
	// List returns ledger rows, most recently claimed first
	List(ctx context.Context, limit, offset int) ([]*domain.NotificationRecord, error)
	// Purge deletes sent rows older than before and returns how many were removed
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Notification NotificationRepository
}
