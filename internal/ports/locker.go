package ports

import "context"

// Locker provides mutual exclusion keyed by an arbitrary string
type Locker interface {
	// Acquire returns domain.ErrLockHeld when another holder has the key.
	// The returned release func is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
