// Package kbuf implements a bucketed buffer cache: a locked,
// at-most-one-user view of fixed-size disk blocks with a
// double-checked-lookup acquisition path and approximate-LRU eviction.
package kbuf

import (
	"nanokernel/kclock"
	"nanokernel/klock"
)

// Buffer is one fixed-capacity slot in the pool. Its bucket-list
// pointers and refcount are protected by its current bucket's
// spin-lock; its dev/blockNo/valid/data are protected by its
// sleep-lock once acquired via the cache's Read; lastUsed is protected
// by the bucket spin-lock and written only on Release.
type Buffer struct {
	dev     uint32
	blockNo uint64
	valid   bool

	refcount int32
	lastUsed kclock.Tick

	lock klock.SleepLock
	data []byte

	// prev/next are pool indices, not pointers: the pool array owns
	// every Buffer at a stable address, and the bucket list is a
	// non-owning intrusive list over those indices. See bucketMeta in
	// bucket.go for the node ref convention.
	prev, next int
}

// Data returns the buffer's fixed-size contents. The caller must hold
// the buffer's sleep-lock (i.e. must be between a Read and its
// matching Release) to read or write it safely.
func (b *Buffer) Data() []byte {
	return b.data
}

// Dev and BlockNo report which block this buffer currently caches.
// Both are only meaningful while the caller holds the buffer's
// sleep-lock or otherwise knows it cannot be reassigned concurrently.
func (b *Buffer) Dev() uint32     { return b.dev }
func (b *Buffer) BlockNo() uint64 { return b.blockNo }
func (b *Buffer) Valid() bool     { return b.valid }
