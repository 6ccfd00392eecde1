package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

var releaseScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a SessionLocker shared by every process that talks to the same
// Redis. The holder's token guards release so an expired holder cannot
// delete a successor's lock.
type Redis struct {
	client *redisv9.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewRedis(client *redisv9.Client, ttl, wait time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 150 * time.Second
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		wait:   wait,
		retry:  50 * time.Millisecond,
	}
}

func (l *Redis) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := "chat:lock:" + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		ok, err := l.client.SetNX(waitCtx, fullKey, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("acquire redis lock failed: %w", err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
			}, nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrLockTimeout
		case <-timer.C:
		}
	}
}
