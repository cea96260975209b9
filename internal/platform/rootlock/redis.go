package rootlock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

const keyPrefix = "mdr:rootlock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only while the key still holds our token.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a cross-process Locker backed by SET NX PX.
type Redis struct {
	log  *logger.Logger
	rdb  goredis.UniversalClient
	ttl  time.Duration
	wait time.Duration
}

type RedisConfig struct {
	Addr string
	TTL  time.Duration
	Wait time.Duration
}

// NewRedis connects and pings. The TTL bounds how long a crashed holder can
// block others; live holders renew it every third of the TTL.
func NewRedis(cfg RedisConfig, log *logger.Logger) (*Redis, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, cfg.TTL, cfg.Wait, log), nil
}

func NewRedisWithClient(rdb goredis.UniversalClient, ttl, wait time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Redis{log: log.With("service", "RedisRootLock"), rdb: rdb, ttl: ttl, wait: wait}
}

func (r *Redis) Acquire(ctx context.Context, keys ...string) (func(context.Context) error, error) {
	return acquireAll(ctx, r, keys, uuid.NewString(), r.wait)
}

func (r *Redis) try(ctx context.Context, key, token string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, keyPrefix+key, token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("rootlock: set %s: %w", key, err)
	}
	return ok, nil
}

func (r *Redis) drop(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.rdb, []string{keyPrefix + key}, token).Err(); err != nil {
		r.log.Warn("root lock release failed", "key", key, "error", err)
		return err
	}
	return nil
}

func (r *Redis) renewInterval() time.Duration { return r.ttl / 3 }

func (r *Redis) extend(ctx context.Context, key, token string) (bool, error) {
	n, err := extendScript.Run(ctx, r.rdb, []string{keyPrefix + key}, token, r.ttl.Milliseconds()).Int()
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn("root lock renewal failed", "key", key, "error", err)
		}
		return false, err
	}
	if n == 0 {
		r.log.Warn("root lock lost before release", "key", key)
		return false, nil
	}
	return true, nil
}

func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
