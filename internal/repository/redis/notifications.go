package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/domain"
	"github.com/Mide008/Roothaus-1/internal/repository"
	pkgerrors "github.com/Mide008/Roothaus-1/pkg/errors"
)

const keyPrefix = "roothaus:notification:"

// a pending claim is only released by the delivery that holds it: the stored
// value must still be the one that delivery wrote
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NotificationRepository keeps the ledger in Redis. A pending claim expires
// after the claim TTL; a sent marker is kept for the retention period.
type NotificationRepository struct {
	client    *goredis.Client
	claimTTL  time.Duration
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotificationRepository(client *goredis.Client, claimTTL, retention time.Duration, logger *zap.Logger) *NotificationRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationRepository{
		client:    client,
		claimTTL:  claimTTL,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *NotificationRepository) Claim(ctx context.Context, sessionID string, kind domain.NotificationKind) (repository.Claim, error) {
	k := key(sessionID, kind)
	claimedAt := r.now().UTC().Truncate(time.Microsecond)
	ok, err := r.client.SetNX(ctx, k, pendingValue(claimedAt), r.claimTTL).Result()
	if err != nil {
		r.logger.Error("Failed to claim notification", zap.String("session_id", sessionID), zap.String("kind", string(kind)), zap.Error(err))
		return repository.Claim{}, fmt.Errorf("redis setnx failed: %w", err)
	}
	if ok {
		return repository.Claim{Acquired: true, Status: domain.NotificationPending, ClaimedAt: claimedAt}, nil
	}

	current, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, goredis.Nil) {
		// released or expired since SETNX: let the caller retry later
		return repository.Claim{Status: domain.NotificationPending}, nil
	}
	if err != nil {
		return repository.Claim{}, fmt.Errorf("redis get failed: %w", err)
	}
	rec, err := parseValue(current)
	if err != nil {
		r.logger.Warn("Malformed ledger entry blocks claim", zap.String("key", k), zap.Error(err))
		return repository.Claim{Status: domain.NotificationPending}, nil
	}
	return repository.Claim{Status: rec.Status}, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, sessionID string, kind domain.NotificationKind) error {
	k := key(sessionID, kind)
	current, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, goredis.Nil) {
		return &pkgerrors.ErrNotFound{Resource: "notification", ID: sessionID + "/" + string(kind)}
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}

	claimedAt := r.now().UTC()
	if rec, perr := parseValue(current); perr == nil {
		claimedAt = rec.ClaimedAt
	}
	value := fmt.Sprintf("sent:%d:%d", claimedAt.UnixMicro(), r.now().UnixMicro())
	if err := r.client.Set(ctx, k, value, r.retention).Err(); err != nil {
		r.logger.Error("Failed to mark notification sent", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *NotificationRepository) Release(ctx context.Context, sessionID string, kind domain.NotificationKind, claimedAt time.Time) error {
	if err := releaseScript.Run(ctx, r.client, []string{key(sessionID, kind)}, pendingValue(claimedAt)).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		r.logger.Error("Failed to release notification claim", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}

func (r *NotificationRepository) List(ctx context.Context, limit, offset int) ([]*domain.NotificationRecord, error) {
	var records []*domain.NotificationRecord
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		value, err := r.client.Get(ctx, k).Result()
		if errors.Is(err, goredis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("redis get failed: %w", err)
		}

		rec, err := parseValue(value)
		if err != nil {
			r.logger.Warn("Skipping malformed ledger entry", zap.String("key", k), zap.Error(err))
			continue
		}
		rec.SessionID, rec.Kind = parseKey(k)
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].ClaimedAt.Equal(records[j].ClaimedAt) {
			return records[i].SessionID+string(records[i].Kind) < records[j].SessionID+string(records[j].Kind)
		}
		return records[i].ClaimedAt.After(records[j].ClaimedAt)
	})
	if offset >= len(records) {
		return []*domain.NotificationRecord{}, nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

// Purge is a no-op: sent markers expire on their own after the retention period
func (r *NotificationRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func pendingValue(claimedAt time.Time) string {
	return fmt.Sprintf("pending:%d", claimedAt.UnixMicro())
}

func key(sessionID string, kind domain.NotificationKind) string {
	return keyPrefix + sessionID + ":" + string(kind)
}

func parseKey(k string) (string, domain.NotificationKind) {
	rest := strings.TrimPrefix(k, keyPrefix)
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return rest, ""
	}
	return rest[:i], domain.NotificationKind(rest[i+1:])
}

// parseValue decodes "pending:<claimed>" or "sent:<claimed>:<sent>" (unix microseconds)
func parseValue(v string) (*domain.NotificationRecord, error) {
	parts := strings.Split(v, ":")
	unix := func(s string) (time.Time, error) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMicro(n).UTC(), nil
	}

	switch {
	case len(parts) == 2 && parts[0] == string(domain.NotificationPending):
		claimed, err := unix(parts[1])
		if err != nil {
			return nil, err
		}
		return &domain.NotificationRecord{Status: domain.NotificationPending, ClaimedAt: claimed}, nil
	case len(parts) == 3 && parts[0] == string(domain.NotificationSent):
		claimed, err := unix(parts[1])
		if err != nil {
			return nil, err
		}
		sent, err := unix(parts[2])
		if err != nil {
			return nil, err
		}
		return &domain.NotificationRecord{Status: domain.NotificationSent, ClaimedAt: claimed, SentAt: &sent}, nil
	default:
		return nil, fmt.Errorf("unexpected ledger value %q", v)
	}
}
