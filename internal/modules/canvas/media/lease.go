package media

import (
	"context"
	"time"

	"github.com/yungbote/neurocanvas-backend/internal/platform/redisx"
)

// Locker grants one process the background poll loop of a job.
type Locker interface {
	// Acquire returns (nil, nil) when another holder owns name.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

type Lease interface {
	// Renew reports false once the lease has expired or changed hands.
	Renew(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLocker adapts a redisx.Locker. A nil locker yields nil.
func RedisLocker(l *redisx.Locker) Locker {
	if l == nil {
		return nil
	}
	return redisLocker{l: l}
}

type redisLocker struct {
	l *redisx.Locker
}

func (r redisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	le, err := r.l.Acquire(ctx, name, ttl)
	if err != nil || le == nil {
		return nil, err
	}
	return le, nil
}

func leaseName(jobID string) string { return "media-job:" + jobID }
