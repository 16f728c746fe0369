package redis_store

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
)

const (
	lockExpiry = 2 * time.Minute
	lockTries  = 64
)

type MutexLocker struct {
	rs *redsync.Redsync
}

func NewMutexLocker(rs *redsync.Redsync) *MutexLocker {
	return &MutexLocker{rs}
}

// Lock blocks until key is held or ctx is done.
func (l *MutexLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(lockExpiry), redsync.WithTries(lockTries))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	return func() {
		// nolint:errcheck
		mutex.UnlockContext(context.Background())
	}, nil
}
