package cache

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxLockHold is how long a per-key lock may be held before the
// periodic clean pass force-releases it.
const DefaultMaxLockHold = time.Minute

// LockManager provides per-key mutual exclusion with stale-lock
// recovery, plus a global lock used for cache-wide sweeps. While the
// global lock is held (or being waited for) no per-key acquisition
// proceeds, and the global lock is only granted once every per-key
// lock has been released.
type LockManager struct {
	mu   sync.Mutex
	cond *sync.Cond

	held          map[string]time.Time
	globalHeld    bool
	globalWaiting int

	maxHold time.Duration
}

// NewLockManager creates a lock manager. A non-positive maxHold falls
// back to DefaultMaxLockHold.
func NewLockManager(maxHold time.Duration) *LockManager {
	if maxHold <= 0 {
		maxHold = DefaultMaxLockHold
	}
	lm := &LockManager{
		held:    make(map[string]time.Time),
		maxHold: maxHold,
	}
	lm.cond = sync.NewCond(&lm.mu)
	return lm
}

// Wait blocks until the key is free and no global operation is active
// or pending, then marks the key held.
func (lm *LockManager) Wait(key string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for {
		_, keyHeld := lm.held[key]
		if !keyHeld && !lm.globalHeld && lm.globalWaiting == 0 {
			break
		}
		lm.cond.Wait()
	}
	lm.held[key] = time.Now()
}

// Release frees the key. Releasing a key that is not held is a no-op;
// it happens after a clean pass force-released the key.
func (lm *LockManager) Release(key string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	delete(lm.held, key)
	lm.cond.Broadcast()
}

// WaitAll acquires the global lock: it blocks new per-key acquisitions
// immediately and proceeds once every held key has been released.
func (lm *LockManager) WaitAll() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.globalWaiting++
	for lm.globalHeld || len(lm.held) > 0 {
		lm.cond.Wait()
	}
	lm.globalWaiting--
	lm.globalHeld = true
}

// ReleaseAll frees the global lock.
func (lm *LockManager) ReleaseAll() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.globalHeld = false
	lm.cond.Broadcast()
}

// Clean force-releases every key held longer than the configured max
// hold. This recovers from a hung or crashed holder; a forced release
// is a defect signal and is logged as a warning. Returns the number of
// keys released.
func (lm *LockManager) Clean() int {
	now := time.Now()
	lm.mu.Lock()
	defer lm.mu.Unlock()

	released := 0
	for key, since := range lm.held {
		if now.Sub(since) > lm.maxHold {
			slog.Warn("force-releasing stale lock",
				"key", key,
				"held_for", now.Sub(since),
				"max_hold", lm.maxHold,
			)
			delete(lm.held, key)
			released++
		}
	}
	if released > 0 {
		lm.cond.Broadcast()
	}
	return released
}

// StartCleanLoop starts a goroutine that runs Clean periodically.
// Returns a cancel function to stop the loop.
func (lm *LockManager) StartCleanLoop(interval time.Duration) func() {
	if interval <= 0 {
		interval = lm.maxHold
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				lm.Clean()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// HeldCount returns the number of currently held per-key locks.
func (lm *LockManager) HeldCount() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.held)
}
