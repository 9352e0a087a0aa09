package kpage

import "encoding/binary"

// Poison bytes written over a frame's memory on free and on alloc: 0x01
// catches dangling references into freed memory, 0x05 catches readers
// of uninitialized memory.
const (
	freePoison  byte = 0x01
	allocPoison byte = 0x05
)

// Frame is a page-aligned window into the allocator's backing arena.
// Its identity is its Offset from the arena's start.
type Frame struct {
	Offset int
	data   []byte
}

// Bytes returns the frame's backing memory. Callers receive freshly
// scribbled memory from Alloc, so stale content left by a previous
// owner is never observable.
func (f *Frame) Bytes() []byte {
	return f.data
}

// nextOffset reads the intrusive free-list link stored in the frame's
// first 8 bytes. A raw pointer cannot be stored this way in Go — the
// garbage collector cannot trace an address encoded as an integer — so
// the link is a relative offset into the shared arena instead; -1
// marks the end of the list.
func (f *Frame) nextOffset() int64 {
	return int64(binary.LittleEndian.Uint64(f.data[:8])) - 1
}

func (f *Frame) setNextOffset(next int64) {
	binary.LittleEndian.PutUint64(f.data[:8], uint64(next+1))
}
