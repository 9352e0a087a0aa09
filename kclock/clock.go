// Package kclock provides the monotonic tick source kbuf uses to
// approximate LRU order.
package kclock

import "go.uber.org/atomic"

// Tick is a signed monotonic timestamp. It is deliberately signed so
// that a buffer's "never used" sentinel (-1) compares less than every
// real tick under ordinary signed comparison.
type Tick int64

// NeverUsed is the sentinel lastUsed value for a buffer that has never
// been released, making it the first candidate for eviction.
const NeverUsed Tick = -1

// Clock hands out increasing Ticks. Implementations must be safe for
// concurrent use.
type Clock interface {
	Now() Tick
}

// SystemClock is a Clock backed by an in-process atomic counter. Unlike
// a wall-clock timestamp, it never produces two equal values for two
// calls ordered on the same goroutine's timeline, which is what an LRU
// approximation needs — relative order, not wall-clock accuracy.
type SystemClock struct {
	ticks atomic.Int64
}

// NewSystemClock returns a SystemClock starting at tick 0.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the next tick, strictly greater than every previous
// return value from this clock.
func (c *SystemClock) Now() Tick {
	return Tick(c.ticks.Add(1))
}
