package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Mide008/Roothaus-1/internal/domain"
)

// RedisStorage persists one cart under a single key and broadcasts every save on a
// pub/sub channel, so carts opened by several processes stay in sync.
type RedisStorage struct {
	client *redis.Client
	cartID string
	logger *zap.Logger
}

func NewRedisStorage(client *redis.Client, cartID string, logger *zap.Logger) *RedisStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStorage{
		client: client,
		cartID: cartID,
		logger: logger,
	}
}

func (r *RedisStorage) Load(ctx context.Context) ([]domain.CartItem, error) {
	data, err := r.client.Get(ctx, r.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	items, err := decodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return items, nil
}

func (r *RedisStorage) Save(ctx context.Context, change Change) error {
	items, err := json.Marshal(change.Items)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	envelope, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal cart change failed: %w", err)
	}

	if err := r.client.Set(ctx, r.key(), items, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(), envelope).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Subscribe(ctx context.Context, fn func(Change)) (func(), error) {
	pubsub := r.client.Subscribe(ctx, r.channel())
	// wait for the subscription to be confirmed so no save is missed afterwards
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				r.logger.Warn("Ignoring malformed cart change", zap.String("cart_id", r.cartID), zap.Error(err))
				continue
			}
			fn(change)
		}
	}()

	return func() {
		_ = pubsub.Close()
		<-done
	}, nil
}

func (r *RedisStorage) key() string {
	return fmt.Sprintf("%s:%s", StorageKey, r.cartID)
}

func (r *RedisStorage) channel() string {
	return r.key() + ":changes"
}
