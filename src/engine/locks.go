package engine

import "sync"

// LockRegistry serializes engine operations per user. Operations on one
// wallet/position set never interleave; different users proceed fully in
// parallel. The registry is created at service start and injected, not held
// as package state.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[uint]*sync.Mutex)}
}

// Acquire blocks until the caller holds the exclusive lock for userID and
// returns the release function.
func (r *LockRegistry) Acquire(userID uint) func() {
	r.mu.Lock()
	lock, ok := r.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[userID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
