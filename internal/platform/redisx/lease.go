package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker hands out short-lived exclusive leases keyed by name.
type Locker struct {
	rdb    *goredis.Client
	prefix string
}

func NewLocker(rdb *goredis.Client, prefix string) *Locker {
	if prefix == "" {
		prefix = "lease:"
	}
	return &Locker{rdb: rdb, prefix: prefix}
}

type Lease struct {
	locker *Locker
	key    string
	token  string
	ttl    time.Duration
}

// Acquire returns (nil, nil) when another holder owns the key.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.rdb == nil {
		return nil, errors.New("redis locker not initialized")
	}
	key := l.prefix + name
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lease{locker: l, key: key, token: token, ttl: ttl}, nil
}

// Renew extends the lease. It reports false if the lease was lost.
func (le *Lease) Renew(ctx context.Context) (bool, error) {
	if le == nil {
		return false, nil
	}
	n, err := renewScript.Run(ctx, le.locker.rdb, []string{le.key}, le.token, le.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis renew %s: %w", le.key, err)
	}
	return n == 1, nil
}

func (le *Lease) Release(ctx context.Context) error {
	if le == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, le.locker.rdb, []string{le.key}, le.token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis release %s: %w", le.key, err)
	}
	return nil
}
