// Package klock provides two lock primitives: a non-yielding SpinLock
// for short critical sections, and a SleepLock for sections that may
// block on I/O.
package klock

import (
	"runtime"
	"sync/atomic"
)

// SpinLock is a non-yielding mutual-exclusion lock. It never parks the
// calling goroutine's underlying OS thread; a contended Lock busy-waits,
// backing off with runtime.Gosched so other goroutines on the same P
// get a chance to run. Critical sections held under a SpinLock must be
// short and must never call anything that can block (a channel receive,
// another SleepLock, I/O) — doing so would stall every other goroutine
// spinning on the same lock.
type SpinLock struct {
	held atomic.Bool
}

// Lock spins until the lock is acquired.
func (l *SpinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// Unlock releases the lock. Unlock of an unheld lock is a programmer
// error and panics, matching spin_lock's "release must be balanced"
// contract.
func (l *SpinLock) Unlock() {
	if !l.held.CompareAndSwap(true, false) {
		panic("klock: unlock of unheld spinlock")
	}
}

// TryLock attempts to acquire the lock without spinning, returning
// whether it succeeded.
func (l *SpinLock) TryLock() bool {
	return l.held.CompareAndSwap(false, true)
}
