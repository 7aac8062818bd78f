package locksvc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/casbytes/lms-sub000/core"
)

// releaseScript deletes the key only if it still holds our token, so an expired lock taken over by
// another request is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	rdb    *goredis.Client
	logger core.Logger
}

var _ core.Locker = (*redisLocker)(nil)

// NewRedisLocker connects to Redis and checks the connection with a ping.
func NewRedisLocker(conf *core.Config, logger core.Logger) (core.Locker, func() error, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        conf.Redis.Address,
		Password:    conf.Redis.Password,
		DB:          conf.Redis.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, errors.Wrap(err, "pinging redis")
	}
	return &redisLocker{rdb: rdb, logger: logger}, rdb.Close, nil
}

func (l *redisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, "obtaining lock")
	}
	if !ok {
		return nil, core.NewConflictError(key)
	}

	return func() {
		// the request context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && err != goredis.Nil {
			l.logger.Warn("releasing lock", err, map[string]interface{}{"key": key})
		}
	}, nil
}
