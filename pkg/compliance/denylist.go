package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openrounds/roundsx/pkg/utils"
)

// Denylist answers "is this project blacklisted". Deny-listed projects are
// silently skipped during cascade repair, never errored.
type Denylist interface {
	IsBlacklisted(ctx context.Context, projectID string) (bool, error)
}

// denylistKey is the Redis set holding blacklisted project ids.
const denylistKey = "rounds:denylist:projects"

// RedisDenylist reads the deny-list from a Redis set maintained by the
// compliance tooling.
type RedisDenylist struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisDenylist connects to Redis using environment variables:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: "0")
func NewRedisDenylist(ctx context.Context, logger *zap.Logger) (*RedisDenylist, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis deny-list",
		zap.String("addr", addr),
		zap.Int("db", db))

	return &RedisDenylist{client: rdb, logger: logger}, nil
}

// IsBlacklisted checks membership in the deny-list set.
func (d *RedisDenylist) IsBlacklisted(ctx context.Context, projectID string) (bool, error) {
	return d.client.SIsMember(ctx, denylistKey, projectID).Result()
}

// Close closes the Redis connection.
func (d *RedisDenylist) Close() error {
	return d.client.Close()
}

// Health checks if Redis is healthy.
func (d *RedisDenylist) Health(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
