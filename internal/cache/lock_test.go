package cache

import (
	"sync"
	"testing"
	"time"
)

func TestLockManager_PerKeySerialization(t *testing.T) {
	lm := NewLockManager(time.Minute)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	lm.Wait("sr:match:1")
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			lm.Wait("sr:match:1")
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			lm.Release("sr:match:1")
		}(i)
	}

	// Nothing may proceed while the key is held.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	if len(order) != 0 {
		t.Fatalf("goroutines entered while lock held: %v", order)
	}
	mu.Unlock()

	lm.Release("sr:match:1")
	wg.Wait()
	if len(order) != 5 {
		t.Errorf("expected 5 entries, got %d", len(order))
	}
}

func TestLockManager_DifferentKeysDoNotBlock(t *testing.T) {
	lm := NewLockManager(time.Minute)
	lm.Wait("sr:match:1")
	defer lm.Release("sr:match:1")

	done := make(chan struct{})
	go func() {
		lm.Wait("sr:match:2")
		lm.Release("sr:match:2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked by unrelated lock")
	}
}

func TestLockManager_GlobalExcludesPerKey(t *testing.T) {
	lm := NewLockManager(time.Minute)

	lm.Wait("sr:match:1")

	globalAcquired := make(chan struct{})
	go func() {
		lm.WaitAll()
		close(globalAcquired)
	}()

	// Global must wait for the held key.
	select {
	case <-globalAcquired:
		t.Fatal("global lock acquired while key held")
	case <-time.After(20 * time.Millisecond):
	}

	// New per-key acquisitions are starved while the global is pending.
	keyAcquired := make(chan struct{})
	go func() {
		lm.Wait("sr:match:2")
		close(keyAcquired)
	}()
	select {
	case <-keyAcquired:
		t.Fatal("per-key lock acquired while global pending")
	case <-time.After(20 * time.Millisecond):
	}

	lm.Release("sr:match:1")
	select {
	case <-globalAcquired:
	case <-time.After(time.Second):
		t.Fatal("global lock never acquired")
	}

	lm.ReleaseAll()
	select {
	case <-keyAcquired:
	case <-time.After(time.Second):
		t.Fatal("per-key lock never acquired after global release")
	}
	lm.Release("sr:match:2")
}

func TestLockManager_CleanForcesStaleRelease(t *testing.T) {
	lm := NewLockManager(10 * time.Millisecond)
	lm.Wait("sr:match:1")

	time.Sleep(25 * time.Millisecond)
	if released := lm.Clean(); released != 1 {
		t.Fatalf("Clean released %d locks, want 1", released)
	}
	if lm.HeldCount() != 0 {
		t.Errorf("expected no held locks after clean, got %d", lm.HeldCount())
	}

	// The original holder's Release must stay harmless.
	lm.Release("sr:match:1")
}

func TestLockManager_CleanKeepsFreshLocks(t *testing.T) {
	lm := NewLockManager(time.Minute)
	lm.Wait("sr:match:1")
	defer lm.Release("sr:match:1")

	if released := lm.Clean(); released != 0 {
		t.Errorf("Clean released %d fresh locks, want 0", released)
	}
}
