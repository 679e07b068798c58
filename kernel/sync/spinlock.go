// Package sync provides the synchronization primitives used by the kernel.
package sync

import "sync/atomic"

var (
	// yieldFn is invoked while busy-waiting for a lock. It is nil on the
	// single CPU the kernel runs on (the holder cannot be preempted while
	// interrupts are masked) and is swapped by tests to avoid deadlocks.
	yieldFn func()
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for atomic.SwapUint32(&l.state, 1) != 0 {
		if yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
