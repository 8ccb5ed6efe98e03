package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/internal/idgen"
	"github.com/viant/approvo/logger"
	"go.uber.org/zap"
)

var releaseScript = rd.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisConfig controls the distributed lock.
type RedisConfig struct {
	// TTL bounds how long a crashed holder keeps the key.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
	// RetryInterval is the polling interval while the key is held elsewhere.
	RetryInterval time.Duration `json:"retryInterval" yaml:"retryInterval"`
	// WaitTimeout bounds acquisition when ctx carries no deadline.
	WaitTimeout time.Duration `json:"waitTimeout" yaml:"waitTimeout"`
}

// DefaultRedisConfig returns lock defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{TTL: 30 * time.Second, RetryInterval: 25 * time.Millisecond, WaitTimeout: 10 * time.Second}
}

// Redis is a SET NX PX lock with token checked release.
type Redis struct {
	client    rd.UniversalClient
	namespace string
	config    RedisConfig
}

// NewRedis creates a distributed locker storing keys under namespace.
func NewRedis(client rd.UniversalClient, namespace string, config RedisConfig) *Redis {
	defaults := DefaultRedisConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaults.RetryInterval
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = defaults.WaitTimeout
	}
	return &Redis{client: client, namespace: namespace, config: config}
}

// Lock acquires key, polling until ctx is done or the wait timeout elapses.
func (r *Redis) Lock(ctx context.Context, key string) (Release, error) {
	lockKey := fmt.Sprintf("%s:lock:%s", r.namespace, key)
	token := idgen.New()
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.WaitTimeout)
		defer cancel()
	}
	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()
	for {
		acquired, err := r.client.SetNX(ctx, lockKey, token, r.config.TTL).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if acquired {
			return r.release(lockKey, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", errs.ErrLockNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Redis) release(lockKey, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.config.RetryInterval*40)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{lockKey}, token).Err(); err != nil {
				logger.Warn("failed to release lock", zap.String("key", lockKey), zap.Error(err))
			}
		})
	}
}

var _ Locker = (*Redis)(nil)
