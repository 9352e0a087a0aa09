package kbuf

import "nanokernel/klock"

// bucketMeta holds one bucket's lock and the prev/next pointers of its
// sentinel head node. The sentinel itself is not a pool Buffer — it is
// addressed by a negative "node ref" so the same prev/next-manipulation
// code works uniformly over sentinels and real buffers.
//
// Node ref convention: ref >= 0 is pool index ref; ref < 0 is the
// sentinel of bucket (-ref - 1).
type bucketMeta struct {
	mu       klock.SpinLock
	sentPrev int
	sentNext int
}

func sentinelRef(bucketIdx int) int {
	return -(bucketIdx + 1)
}

func bucketOfSentinel(ref int) int {
	return -ref - 1
}

func (c *BufferCache) getNext(ref int) int {
	if ref < 0 {
		return c.buckets[bucketOfSentinel(ref)].sentNext
	}
	return c.pool[ref].next
}

func (c *BufferCache) setNext(ref, v int) {
	if ref < 0 {
		c.buckets[bucketOfSentinel(ref)].sentNext = v
		return
	}
	c.pool[ref].next = v
}

func (c *BufferCache) getPrev(ref int) int {
	if ref < 0 {
		return c.buckets[bucketOfSentinel(ref)].sentPrev
	}
	return c.pool[ref].prev
}

func (c *BufferCache) setPrev(ref, v int) {
	if ref < 0 {
		c.buckets[bucketOfSentinel(ref)].sentPrev = v
		return
	}
	c.pool[ref].prev = v
}

// initBucket makes bucket i's list empty (sentinel points to itself).
func (c *BufferCache) initBucket(i int) {
	s := sentinelRef(i)
	c.setNext(s, s)
	c.setPrev(s, s)
}

// unlink removes node ref from whichever bucket list it is currently
// linked into. The caller must hold the lock of that bucket.
func (c *BufferCache) unlink(ref int) {
	p, n := c.getPrev(ref), c.getNext(ref)
	c.setNext(p, n)
	c.setPrev(n, p)
}

// linkAtHead links node ref at the head of bucket i's list. The caller
// must hold bucket i's lock.
func (c *BufferCache) linkAtHead(i, ref int) {
	s := sentinelRef(i)
	first := c.getNext(s)
	c.setPrev(ref, s)
	c.setNext(ref, first)
	c.setPrev(first, ref)
	c.setNext(s, ref)
}

// linkAllIntoBucketZero links every pool buffer into bucket 0's list at
// construction time, each with lastUsed already set to kclock.NeverUsed.
func (c *BufferCache) linkAllIntoBucketZero() {
	for i := range c.buckets {
		c.initBucket(i)
	}
	for idx := range c.pool {
		c.linkAtHead(0, idx)
	}
}
