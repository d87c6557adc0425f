/*
Package locker provides per-key mutual exclusion so that writers to one
document serialize while writers to different documents run in parallel.

If a lock with a given key does not exist when Lock is called, one is created.
Lock entries are removed on unlock once nobody else holds or waits for them.
*/
package locker

import (
	"context"
	"sync"
)

// Locker hands out locks by key.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is a one-slot semaphore so that waiting can be abandoned on ctx.
type keyLock struct {
	sem chan struct{}
	// refs counts holders plus waiters; guarded by Locker.mu.
	refs int
}

// New creates a new Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*keyLock)}
}

// Lock blocks until the lock for key is held or ctx is done. On success the
// returned function releases the lock; it must be called exactly once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			l.release(key, kl)
		})
	}, nil
}

func (l *Locker) release(key string, kl *keyLock) {
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// Len returns the number of keys currently held or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
