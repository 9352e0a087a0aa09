// Package kpage implements a per-CPU physical page allocator: a fixed
// arena split into page-aligned Frames, handed out from per-CPU
// shards, rebalanced lazily by stealing from other shards on a local
// miss.
package kpage

import (
	"fmt"

	"go.uber.org/atomic"

	"nanokernel/klock"
)

const linkSize = 8

// PageAllocator owns a fixed arena [0, len(arena)) split into
// page-aligned Frames and partitioned across NCPU shards. Every free
// Frame is in exactly one shard's free list at all times.
type PageAllocator struct {
	pageSize  int
	numFrames int
	ncpu      int

	arena  []byte
	pool   []Frame
	shards []shard

	steals atomic.Int64
}

type shard struct {
	mu   klock.SpinLock
	head int64 // byte offset of the free list's head frame, or -1
}

// NewAllocator builds an allocator over a fresh arena of heapSize
// bytes (rounded down to a whole number of pageSize-byte frames),
// partitioned across ncpu shards. Every frame starts in shard 0's free
// list — stealing redistributes them across shards lazily on first
// use.
func NewAllocator(ncpu, pageSize, heapSize int) *PageAllocator {
	if ncpu <= 0 {
		panic("kpage: ncpu must be positive")
	}
	if pageSize < linkSize {
		panic(fmt.Sprintf("kpage: pageSize must be at least %d bytes", linkSize))
	}

	numFrames := heapSize / pageSize
	a := &PageAllocator{
		pageSize:  pageSize,
		numFrames: numFrames,
		ncpu:      ncpu,
		arena:     make([]byte, numFrames*pageSize),
		pool:      make([]Frame, numFrames),
		shards:    make([]shard, ncpu),
	}
	for i := range a.shards {
		a.shards[i].head = -1
	}
	for i := 0; i < numFrames; i++ {
		offset := i * pageSize
		a.pool[i] = Frame{Offset: offset, data: a.arena[offset : offset+pageSize]}
	}

	// freerange: push every frame into shard 0 via the same free path
	// alloc/free use, so init and steady-state share one code path.
	for i := numFrames - 1; i >= 0; i-- {
		a.pushLocked(0, &a.pool[i])
	}
	return a
}

// NumFrames returns the total number of page-aligned frames the arena
// was split into.
func (a *PageAllocator) NumFrames() int {
	return a.numFrames
}

// pushLocked links f onto shard id's free list. The caller must hold
// shard id's lock (or call it, as NewAllocator does, before any other
// goroutine can observe the allocator).
func (a *PageAllocator) pushLocked(id int, f *Frame) {
	f.setNextOffset(a.shards[id].head)
	a.shards[id].head = int64(f.Offset)
}

// frameAt returns the pool Frame living at byte offset, or nil if
// offset is not a valid frame-aligned offset into the arena.
func (a *PageAllocator) frameAt(offset int64) *Frame {
	if offset < 0 {
		return nil
	}
	idx := offset / int64(a.pageSize)
	if idx < 0 || idx >= int64(a.numFrames) || int64(idx)*int64(a.pageSize) != offset {
		return nil
	}
	return &a.pool[idx]
}

// Alloc returns one free Frame, preferring cpu's own shard and
// stealing from another shard only when cpu's is empty. It returns nil
// if every shard is empty. cpu is an explicit parameter rather than
// ambient state since Go gives a goroutine no portable way to read
// which CPU it is currently running on.
func (a *PageAllocator) Alloc(cpu int) *Frame {
	a.checkCPU(cpu)

	f := a.popFrom(cpu)
	if f == nil {
		for i := 1; i < a.ncpu; i++ {
			id := (cpu + i) % a.ncpu
			if f = a.popFrom(id); f != nil {
				a.steals.Inc()
				break
			}
		}
	}
	if f == nil {
		return nil
	}

	for i := range f.data {
		f.data[i] = allocPoison
	}
	return f
}

func (a *PageAllocator) popFrom(id int) *Frame {
	s := &a.shards[id]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.head == -1 {
		return nil
	}
	f := a.frameAt(s.head)
	s.head = f.nextOffset()
	return f
}

// Free returns f to cpu's shard. It panics if f is nil or is not one of
// this allocator's own Frames (for example a Frame from a different
// allocator). A frame freed twice is not detected.
func (a *PageAllocator) Free(cpu int, f *Frame) {
	a.checkCPU(cpu)
	if f == nil || a.frameAt(int64(f.Offset)) != f {
		panic("kpage: free: misaligned or out-of-range frame")
	}

	for i := range f.data {
		f.data[i] = freePoison
	}

	s := &a.shards[cpu]
	s.mu.Lock()
	a.pushLocked(cpu, f)
	s.mu.Unlock()
}

func (a *PageAllocator) checkCPU(cpu int) {
	if cpu < 0 || cpu >= a.ncpu {
		panic(fmt.Sprintf("kpage: cpu %d out of range [0,%d)", cpu, a.ncpu))
	}
}

// StealCount returns the cumulative number of Alloc calls that found
// cpu's own shard empty and obtained a frame from another shard. An
// Alloc that finds every shard empty is not counted.
func (a *PageAllocator) StealCount() int64 {
	return a.steals.Load()
}

// FreeCount returns the number of free frames currently on cpu's shard.
// Intended for tests and metrics, not the hot path.
func (a *PageAllocator) FreeCount(cpu int) int {
	a.checkCPU(cpu)
	s := &a.shards[cpu]
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for off := s.head; off != -1; {
		f := a.frameAt(off)
		n++
		off = f.nextOffset()
	}
	return n
}
