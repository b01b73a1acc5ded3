package lock

import (
	"context"
	"sync"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"
)

// LocalLocker is an in-process Locker for single-instance deployments and tests
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]struct{}),
	}
}

var _ ports.Locker = (*LocalLocker)(nil)

// Acquire takes the lock for key or returns domain.ErrLockHeld
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
