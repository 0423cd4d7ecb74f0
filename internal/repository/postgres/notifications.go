package postgres

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/repository"
	"github.com/Mide008/Roothaus-1/pkg/errors"
)

type notificationRepository struct {
	db       *sql.DB
	logger   *zap.Logger
	claimTTL time.Duration
	now      func() time.Time
}

// NewNotificationRepository creates a new notification ledger repository
func NewNotificationRepository(db *sql.DB, claimTTL time.Duration, logger *zap.Logger) *notificationRepository {
	return &notificationRepository{
		db:       db,
		logger:   logger,
		claimTTL: claimTTL,
		now:      time.Now,
	}
}

func (r *notificationRepository) Claim(ctx context.Context, sessionID string, kind domain.NotificationKind) (repository.Claim, error) {
	// a pending row older than the claim TTL belongs to a delivery that died mid-send
	query := `
		INSERT INTO notification_deliveries (session_id, kind, status, claimed_at)
		VALUES ($1, $2, 'pending', $3)
		ON CONFLICT (session_id, kind) DO UPDATE
			SET claimed_at = EXCLUDED.claimed_at
			WHERE notification_deliveries.status = 'pending'
			  AND notification_deliveries.claimed_at < $4
		RETURNING session_id
	`

	// TIMESTAMPTZ keeps microseconds; Release matches on this exact value
	now := r.now().UTC().Truncate(time.Microsecond)
	var claimed string
	err := r.db.QueryRowContext(ctx, query, sessionID, string(kind), now, now.Add(-r.claimTTL)).Scan(&claimed)
	if err == sql.ErrNoRows {
		status, err := r.status(ctx, sessionID, kind)
		if err != nil {
			return repository.Claim{}, err
		}
		return repository.Claim{Status: status}, nil
	}
	if err != nil {
		r.logger.Error("Failed to claim notification", zap.String("session_id", sessionID), zap.String("kind", string(kind)), zap.Error(err))
		return repository.Claim{}, err
	}
	return repository.Claim{Acquired: true, Status: domain.NotificationPending, ClaimedAt: now}, nil
}

// status reads the row that blocked a claim. A row released in the meantime is
// reported as pending so the caller retries later instead of assuming success.
func (r *notificationRepository) status(ctx context.Context, sessionID string, kind domain.NotificationKind) (domain.NotificationStatus, error) {
	query := `
		SELECT status FROM notification_deliveries
		WHERE session_id = $1 AND kind = $2
	`

	var status string
	err := r.db.QueryRowContext(ctx, query, sessionID, string(kind)).Scan(&status)
	if err == sql.ErrNoRows {
		return domain.NotificationPending, nil
	}
	if err != nil {
		r.logger.Error("Failed to read notification status", zap.String("session_id", sessionID), zap.String("kind", string(kind)), zap.Error(err))
		return "", err
	}
	return domain.NotificationStatus(status), nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, sessionID string, kind domain.NotificationKind) error {
	query := `
		UPDATE notification_deliveries
		SET status = 'sent', sent_at = $3
		WHERE session_id = $1 AND kind = $2
	`

	result, err := r.db.ExecContext(ctx, query, sessionID, string(kind), r.now().UTC())
	if err != nil {
		r.logger.Error("Failed to mark notification sent", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return &errors.ErrNotFound{Resource: "notification", ID: sessionID + "/" + string(kind)}
	}
	return nil
}

func (r *notificationRepository) Release(ctx context.Context, sessionID string, kind domain.NotificationKind, claimedAt time.Time) error {
	query := `
		DELETE FROM notification_deliveries
		WHERE session_id = $1 AND kind = $2 AND status = 'pending' AND claimed_at = $3
	`

	if _, err := r.db.ExecContext(ctx, query, sessionID, string(kind), claimedAt.UTC()); err != nil {
		r.logger.Error("Failed to release notification claim", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, limit, offset int) ([]*domain.NotificationRecord, error) {
	query := `
		SELECT session_id, kind, status, claimed_at, sent_at
		FROM notification_deliveries
		ORDER BY claimed_at DESC, session_id, kind
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var records []*domain.NotificationRecord
	for rows.Next() {
		var rec domain.NotificationRecord
		var kind, status string
		var sentAt sql.NullTime
		if err := rows.Scan(&rec.SessionID, &kind, &status, &rec.ClaimedAt, &sentAt); err != nil {
			return nil, err
		}
		rec.Kind = domain.NotificationKind(kind)
		rec.Status = domain.NotificationStatus(status)
		if sentAt.Valid {
			t := sentAt.Time
			rec.SentAt = &t
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (r *notificationRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM notification_deliveries
		WHERE status = 'sent' AND sent_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		r.logger.Error("Failed to purge notifications", zap.Error(err))
		return 0, err
	}
	return result.RowsAffected()
}
