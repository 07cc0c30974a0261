// Package lock provides per-account locking so one player's bets, cash-outs
// and balance resets never interleave.
package lock

import (
	"context"
	"sync"
	"time"
)

// entry is a mutex with a count of holders and waiters, so idle entries can
// be dropped from the map.
type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyLock serializes work per username.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
	pool    sync.Pool
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{
		entries: make(map[string]*entry),
		pool: sync.Pool{
			New: func() any { return &entry{} },
		},
	}
}

func (k *KeyLock) acquire(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = k.pool.Get().(*entry)
		e.refs = 0
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyLock) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
		k.pool.Put(e)
	}
}

// Lock blocks until key is held.
func (k *KeyLock) Lock(key string) {
	k.acquire(key).mu.Lock()
}

// Unlock releases key. Unlocking a key that is not held is a no-op.
func (k *KeyLock) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	k.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Unlock()
	k.release(key, e)
}

// TryLock acquires key without blocking.
func (k *KeyLock) TryLock(key string) bool {
	e := k.acquire(key)
	if e.mu.TryLock() {
		return true
	}
	k.release(key, e)
	return false
}

// LockContext waits for key until ctx is done or timeout elapses.
func (k *KeyLock) LockContext(ctx context.Context, key string, timeout time.Duration) error {
	e := k.acquire(key)

	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-timeoutCtx.Done():
		// the waiter still gets the mutex eventually; hand it straight back
		go func() {
			<-done
			e.mu.Unlock()
			k.release(key, e)
		}()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
}

// WithLock runs fn while holding key.
func (k *KeyLock) WithLock(key string, fn func() error) error {
	k.Lock(key)
	defer k.Unlock(key)
	return fn()
}

// WithLockContext runs fn while holding key, giving up after timeout.
func (k *KeyLock) WithLockContext(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	if err := k.LockContext(ctx, key, timeout); err != nil {
		return err
	}
	defer k.Unlock(key)
	return fn()
}

// IsLocked reports whether key is currently held. The answer may be stale by
// the time the caller reads it.
func (k *KeyLock) IsLocked(key string) bool {
	k.mu.Lock()
	e, ok := k.entries[key]
	k.mu.Unlock()
	if !ok {
		return false
	}
	if e.mu.TryLock() {
		e.mu.Unlock()
		return false
	}
	return true
}

// Len returns the number of keys currently held or awaited.
func (k *KeyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
