package verifycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chainsafe/qtx-rewards/pkg/config"
	"github.com/chainsafe/qtx-rewards/pkg/oracle"
)

const (
	lockKeyFmt    = "qtx:verify:lock:%s"
	paymentKeyFmt = "qtx:verify:payment:%s"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Connect opens a redis client and verifies it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

type redisCache struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisCache creates a Cache backed by redis.
func NewRedisCache(client redis.UniversalClient, logger *zap.Logger) *redisCache {
	return &redisCache{client: client, logger: logger}
}

func (c *redisCache) Acquire(ctx context.Context, ref string, ttl time.Duration) (ReleaseFunc, error) {
	key := fmt.Sprintf(lockKeyFmt, ref)
	token := uuid.NewString()

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire verification lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		// the caller's context may already be cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, c.client, []string{key}, token).Err(); err != nil {
			c.logger.Warn("failed to release verification lock", zap.String("ref", ref), zap.Error(err))
		}
	}, nil
}

func (c *redisCache) Remember(ctx context.Context, ref string, p *oracle.Payment, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payment: %w", err)
	}
	if err := c.client.Set(ctx, fmt.Sprintf(paymentKeyFmt, ref), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to remember payment: %w", err)
	}
	return nil
}

func (c *redisCache) Lookup(ctx context.Context, ref string) (*oracle.Payment, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf(paymentKeyFmt, ref)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}

	var p oracle.Payment
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode payment: %w", err)
	}
	return &p, nil
}
