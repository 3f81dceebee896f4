package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/atelier-jewellery/storefront/internal/domain"
)

const (
	// DefaultTTL bounds how long a crashed holder keeps a slot.
	DefaultTTL = 30 * time.Second

	keyPrefix      = "wishlist:inflight:"
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis shares slots between server replicas through Redis. When Redis is
// unreachable it falls back to an in-process guard.
type Redis struct {
	client   redis.Cmdable
	ttl      time.Duration
	fallback *Local
	logger   *slog.Logger
}

// NewRedis creates a Redis-backed guard. ttl <= 0 selects DefaultTTL.
func NewRedis(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl, fallback: NewLocal(), logger: logger}
}

// RedisKey is the Redis key for (user, product).
func RedisKey(user, product string) string {
	return keyPrefix + Key(user, product)
}

// Acquire implements Guard with SET NX PX.
func (g *Redis) Acquire(ctx context.Context, user, product string) (Release, error) {
	key := RedisKey(user, product)
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("acquire wishlist guard: %w", ctxErr)
		}
		g.logger.WarnContext(ctx, "redis guard unavailable, using local guard",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return g.fallback.Acquire(ctx, user, product)
	}
	if !ok {
		return nil, domain.ErrInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(rctx, g.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				g.logger.Warn("release wishlist guard",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		})
	}, nil
}
