// Package locking provides expiring per-key locks used to serialize writes to one submission.
package locking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type localLock struct {
	token     string
	expiresAt time.Time
}

// LocalLocker is an in-process Locker for single-instance deployments
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localLock
	now   func() time.Time
}

// NewLocalLocker creates a new in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		locks: make(map[string]localLock),
		now:   time.Now,
	}
}

// TryLock acquires key if it is free or its previous holder expired
func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.locks[key] = localLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Unlock releases key when token still owns it
func (l *LocalLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.locks[key]
	if !ok {
		return nil
	}
	if held.token != token {
		return ErrNotOwner
	}
	delete(l.locks, key)
	return nil
}
