package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/repository"
	"github.com/Mide008/Roothaus-1/pkg/errors"
)

type notificationKey struct {
	sessionID string
	kind      domain.NotificationKind
}

// NotificationRepository is a process-local ledger. It does not survive restarts
// and is not shared between replicas.
type NotificationRepository struct {
	mu       sync.Mutex
	records  map[notificationKey]*domain.NotificationRecord
	claimTTL time.Duration
	now      func() time.Time
}

func NewNotificationRepository(claimTTL time.Duration) *NotificationRepository {
	return &NotificationRepository{
		records:  make(map[notificationKey]*domain.NotificationRecord),
		claimTTL: claimTTL,
		now:      time.Now,
	}
}

// WithClock replaces the time source
func (r *NotificationRepository) WithClock(now func() time.Time) *NotificationRepository {
	r.now = now
	return r
}

func (r *NotificationRepository) Claim(ctx context.Context, sessionID string, kind domain.NotificationKind) (repository.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := notificationKey{sessionID, kind}
	now := r.now()
	if rec, ok := r.records[key]; ok {
		if rec.Status == domain.NotificationSent || now.Sub(rec.ClaimedAt) < r.claimTTL {
			return repository.Claim{Status: rec.Status}, nil
		}
	}
	r.records[key] = &domain.NotificationRecord{
		SessionID: sessionID,
		Kind:      kind,
		Status:    domain.NotificationPending,
		ClaimedAt: now,
	}
	return repository.Claim{Acquired: true, Status: domain.NotificationPending, ClaimedAt: now}, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, sessionID string, kind domain.NotificationKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[notificationKey{sessionID, kind}]
	if !ok {
		return &errors.ErrNotFound{Resource: "notification", ID: sessionID + "/" + string(kind)}
	}
	sentAt := r.now()
	rec.Status = domain.NotificationSent
	rec.SentAt = &sentAt
	return nil
}

func (r *NotificationRepository) Release(ctx context.Context, sessionID string, kind domain.NotificationKind, claimedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := notificationKey{sessionID, kind}
	if rec, ok := r.records[key]; ok && rec.Status == domain.NotificationPending && rec.ClaimedAt.Equal(claimedAt) {
		delete(r.records, key)
	}
	return nil
}

func (r *NotificationRepository) List(ctx context.Context, limit, offset int) ([]*domain.NotificationRecord, error) {
	r.mu.Lock()
	all := make([]*domain.NotificationRecord, 0, len(r.records))
	for _, rec := range r.records {
		cp := *rec
		all = append(all, &cp)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].ClaimedAt.Equal(all[j].ClaimedAt) {
			if all[i].SessionID == all[j].SessionID {
				return all[i].Kind < all[j].Kind
			}
			return all[i].SessionID < all[j].SessionID
		}
		return all[i].ClaimedAt.After(all[j].ClaimedAt)
	})

	if offset >= len(all) {
		return []*domain.NotificationRecord{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *NotificationRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rec := range r.records {
		if rec.Status == domain.NotificationSent && rec.SentAt != nil && rec.SentAt.Before(before) {
			delete(r.records, key)
			n++
		}
	}
	return n, nil
}
