package kbuf

import (
	"context"
	"fmt"

	"go.uber.org/atomic"

	"nanokernel/kclock"
	"nanokernel/kdisk"
	"nanokernel/klock"
)

// BufferCache is a bucketed cache of fixed-size disk blocks. nbuf
// Buffers are partitioned across nbucket buckets, hashed by
// blockNo % nbucket; a global lock serializes the rare cross-bucket
// reassignment eviction performs.
type BufferCache struct {
	blockSize int
	nbucket   int

	pool    []Buffer
	buckets []bucketMeta
	global  klock.SpinLock

	dev   kdisk.BlockDevice
	clock kclock.Clock

	hits, misses, evictions atomic.Int64
}

// NewCache builds a cache of nbuf Buffers of blockSize bytes each,
// spread across nbucket buckets, reading/writing through dev and
// stamping LRU order using clk. Every Buffer starts in bucket 0 with
// kclock.NeverUsed as its lastUsed tick.
func NewCache(nbuf, nbucket, blockSize int, dev kdisk.BlockDevice, clk kclock.Clock) *BufferCache {
	if nbuf <= 0 || nbucket <= 0 {
		panic("kbuf: nbuf and nbucket must be positive")
	}
	c := &BufferCache{
		blockSize: blockSize,
		nbucket:   nbucket,
		pool:      make([]Buffer, nbuf),
		buckets:   make([]bucketMeta, nbucket),
		dev:       dev,
		clock:     clk,
	}
	for i := range c.pool {
		c.pool[i].data = make([]byte, blockSize)
		c.pool[i].lastUsed = kclock.NeverUsed
	}
	c.linkAllIntoBucketZero()
	return c
}

func (c *BufferCache) hashOf(blockNo uint64) int {
	return int(blockNo % uint64(c.nbucket))
}

// scanBucket looks for (dev, blockNo) in bucket h's list. The caller
// must hold bucket h's lock.
func (c *BufferCache) scanBucket(h int, dev uint32, blockNo uint64) *Buffer {
	sentinel := sentinelRef(h)
	for ref := c.getNext(sentinel); ref != sentinel; ref = c.getNext(ref) {
		b := &c.pool[ref]
		if b.dev == dev && b.blockNo == blockNo {
			return b
		}
	}
	return nil
}

// scanForVictim returns the pool index of the unpinned Buffer with the
// smallest lastUsed tick, or -1 if every Buffer is pinned. It reads
// refcount/lastUsed without holding any bucket lock — a deliberate
// approximation — because the candidate it returns is re-verified
// under its bucket's lock before being reassigned.
func (c *BufferCache) scanForVictim() int {
	victim := -1
	for i := range c.pool {
		if c.pool[i].refcount != 0 {
			continue
		}
		if victim == -1 || c.pool[i].lastUsed < c.pool[victim].lastUsed {
			victim = i
		}
	}
	return victim
}

// get returns a sleep-locked Buffer for (dev, blockNo), allocating one
// via eviction if the block is not already cached.
func (c *BufferCache) get(dev uint32, blockNo uint64) *Buffer {
	h := c.hashOf(blockNo)

	// Fast path: cache hit, no global lock.
	c.buckets[h].mu.Lock()
	if b := c.scanBucket(h, dev, blockNo); b != nil {
		b.refcount++
		c.buckets[h].mu.Unlock()
		c.hits.Inc()
		b.lock.Lock()
		return b
	}
	c.buckets[h].mu.Unlock()
	c.misses.Inc()

	// Miss: serialize against other misses/evictions with the global
	// lock, then re-scan in case another caller just inserted it.
	c.global.Lock()
	c.buckets[h].mu.Lock()
	if b := c.scanBucket(h, dev, blockNo); b != nil {
		b.refcount++
		c.buckets[h].mu.Unlock()
		c.global.Unlock()
		b.lock.Lock()
		return b
	}

	for {
		victimIdx := c.scanForVictim()
		if victimIdx < 0 {
			c.buckets[h].mu.Unlock()
			c.global.Unlock()
			panic("kbuf: no buffers")
		}

		victim := &c.pool[victimIdx]
		hp := c.hashOf(victim.blockNo)
		if hp != h {
			c.buckets[hp].mu.Lock()
		}
		if victim.refcount != 0 {
			// Lost the race: another caller claimed this victim
			// between our lock-free scan and this re-verification.
			if hp != h {
				c.buckets[hp].mu.Unlock()
			}
			continue
		}

		c.unlink(victimIdx)
		if hp != h {
			c.buckets[hp].mu.Unlock()
		}

		victim.dev = dev
		victim.blockNo = blockNo
		victim.valid = false
		victim.refcount = 1
		c.linkAtHead(h, victimIdx)
		c.evictions.Inc()

		c.buckets[h].mu.Unlock()
		c.global.Unlock()
		victim.lock.Lock()
		return victim
	}
}

// Read returns a sleep-locked Buffer whose contents match block
// blockNo on dev, issuing a disk read only if the buffer was not
// already valid.
func (c *BufferCache) Read(ctx context.Context, dev uint32, blockNo uint64) (*Buffer, error) {
	b := c.get(dev, blockNo)
	if !b.valid {
		if err := c.dev.ReadBlock(ctx, dev, blockNo, b.data); err != nil {
			c.Release(b)
			return nil, fmt.Errorf("kbuf: read dev %d block %d: %w", dev, blockNo, err)
		}
		b.valid = true
	}
	return b, nil
}

// Write flushes a held Buffer's contents to disk. b must be locked by
// a prior Read — calling Write on a Buffer whose sleep-lock is not
// held is a programmer error and panics.
func (c *BufferCache) Write(ctx context.Context, b *Buffer) error {
	if !b.lock.Held() {
		panic("kbuf: write: buffer not locked")
	}
	if err := c.dev.WriteBlock(ctx, b.dev, b.blockNo, b.data); err != nil {
		return fmt.Errorf("kbuf: write dev %d block %d: %w", b.dev, b.blockNo, err)
	}
	return nil
}

// Release releases b's sleep-lock and decrements its refcount,
// stamping lastUsed with the current tick so the next eviction scan
// sees it as the least-recently-released candidate once it becomes
// the minimum. Calling Release on a Buffer whose sleep-lock is not
// held is a programmer error and panics.
func (c *BufferCache) Release(b *Buffer) {
	if !b.lock.Held() {
		panic("kbuf: release: buffer not locked")
	}
	b.lock.Unlock()

	h := c.hashOf(b.blockNo)
	c.buckets[h].mu.Lock()
	b.refcount--
	b.lastUsed = c.clock.Now()
	c.buckets[h].mu.Unlock()
}

// Pin increments b's refcount without touching its sleep-lock,
// preventing eviction of a buffer a higher layer will reference later.
func (c *BufferCache) Pin(b *Buffer) {
	h := c.hashOf(b.blockNo)
	c.buckets[h].mu.Lock()
	b.refcount++
	c.buckets[h].mu.Unlock()
}

// Unpin reverses a prior Pin.
func (c *BufferCache) Unpin(b *Buffer) {
	h := c.hashOf(b.blockNo)
	c.buckets[h].mu.Lock()
	b.refcount--
	c.buckets[h].mu.Unlock()
}

// Stats returns cumulative hit/miss/eviction counters, for the CLI and
// for kmetrics to export.
func (c *BufferCache) Stats() (hits, misses, evictions int64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}
