package kpage

import (
	"sync"
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPageSize = 64

func TestAllocFreeRoundTripPreservesFreeCount(t *testing.T) {
	a := NewAllocator(2, testPageSize, testPageSize*4)
	before := a.FreeCount(0)

	f := a.Alloc(0)
	require.NotNil(t, f)
	assert.Equal(t, before-1, a.FreeCount(0))

	a.Free(0, f)
	assert.Equal(t, before, a.FreeCount(0))
}

func TestAllocScribblesAndFreeScribbles(t *testing.T) {
	a := NewAllocator(1, testPageSize, testPageSize*2)

	f := a.Alloc(0)
	require.NotNil(t, f)
	for _, b := range f.Bytes() {
		assert.Equal(t, allocPoison, b)
	}

	f.Bytes()[0] = 0x42
	a.Free(0, f)
	// The first linkSize bytes of a free frame hold the free-list link.
	for _, b := range f.Bytes()[linkSize:] {
		assert.Equal(t, freePoison, b)
	}
}

func TestAllocExhaustionReturnsNil(t *testing.T) {
	a := NewAllocator(1, testPageSize, testPageSize*2)

	require.NotNil(t, a.Alloc(0))
	require.NotNil(t, a.Alloc(0))
	assert.Nil(t, a.Alloc(0))
}

func TestFreeOfForeignFramePanics(t *testing.T) {
	a := NewAllocator(1, testPageSize, testPageSize*2)
	foreign := &Frame{Offset: 0, data: make([]byte, testPageSize)}
	assert.Panics(t, func() { a.Free(0, foreign) })
}

func TestWorkStealingDrainsOwnThenSteals(t *testing.T) {
	// All frames start on shard 0, so draining CPU1 first should
	// immediately force a steal from CPU0.
	a := NewAllocator(2, testPageSize, testPageSize*4)
	before0 := a.FreeCount(0)

	f := a.Alloc(1)
	require.NotNil(t, f, "alloc on empty shard must succeed by stealing")
	assert.Equal(t, 0, a.FreeCount(1))
	assert.Equal(t, before0-1, a.FreeCount(0))
}

func TestNoDoubleAllocationUnderConcurrency(t *testing.T) {
	const ncpu = 4
	const framesPerCPU = 50
	a := NewAllocator(ncpu, testPageSize, testPageSize*ncpu*framesPerCPU)

	var mu sync.Mutex
	seen := make(map[int]bool)

	var wg conc.WaitGroup
	for c := 0; c < ncpu; c++ {
		cpu := c
		wg.Go(func() {
			for i := 0; i < framesPerCPU; i++ {
				f := a.Alloc(cpu)
				require.NotNil(t, f)

				mu.Lock()
				dup := seen[f.Offset]
				seen[f.Offset] = true
				mu.Unlock()
				assert.False(t, dup, "frame at offset %d allocated twice", f.Offset)
			}
		})
	}
	wg.Wait()

	assert.Nil(t, a.Alloc(0))
}

func TestCPUOutOfRangePanics(t *testing.T) {
	a := NewAllocator(2, testPageSize, testPageSize*2)
	assert.Panics(t, func() { a.Alloc(2) })
	assert.Panics(t, func() { a.Free(-1, &Frame{}) })
}
