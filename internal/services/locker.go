package services

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
)

const lockTries = 32

// RedsyncLocker holds a Redis mutex per key. expiry bounds how long a crashed holder blocks the key.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

func NewRedsyncLocker(rs *redsync.Redsync, expiry time.Duration) *RedsyncLocker {
	return &RedsyncLocker{rs, expiry}
}

func (locker *RedsyncLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := locker.rs.NewMutex(key, redsync.WithExpiry(locker.expiry), redsync.WithTries(lockTries))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}

	return func() {
		// nolint:errcheck
		mutex.Unlock()
	}, nil
}
