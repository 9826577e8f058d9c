package syncgroup

import "sync"

// Lock is the GlobalSyncLock: held while a mode transition or a mirrored
// action is in flight. It is not reentrant and never blocks; callers that
// cannot take it either drop their work or defer it.
type Lock struct {
	mu      sync.Mutex
	owner   string
	held    bool
	waiters []func()
}

// NewLock returns a free lock.
func NewLock() *Lock {
	return &Lock{}
}

// TryAcquire takes the lock for owner if it is free.
func (l *Lock) TryAcquire(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false
	}
	l.held = true
	l.owner = owner
	return true
}

// Release frees the lock if owner holds it and then runs the WhenFree
// callbacks registered meanwhile. It reports whether the lock was released.
func (l *Lock) Release(owner string) bool {
	l.mu.Lock()
	if !l.held || l.owner != owner {
		l.mu.Unlock()
		return false
	}
	l.held = false
	l.owner = ""
	waiters := l.waiters
	l.waiters = nil
	l.mu.Unlock()

	for _, fn := range waiters {
		fn()
	}
	return true
}

// Held reports whether the lock is taken.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Owner returns the current holder, empty when free.
func (l *Lock) Owner() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// WhenFree runs fn once the lock is free: immediately if it is free now,
// otherwise right after the next Release.
func (l *Lock) WhenFree(fn func()) {
	l.mu.Lock()
	if l.held {
		l.waiters = append(l.waiters, fn)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	fn()
}
