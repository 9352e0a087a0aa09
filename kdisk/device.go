// Package kdisk provides the synchronous block I/O that kbuf's buffer
// cache reads and writes through, plus two concrete backends.
package kdisk

import "context"

// BlockDevice is the synchronous block I/O contract kbuf relies on. dev
// distinguishes independent address spaces on the same backing store;
// blockNo is a block index within that device. Every Read/Write call
// transfers exactly the fixed block size the BufferCache was
// constructed with.
type BlockDevice interface {
	ReadBlock(ctx context.Context, dev uint32, blockNo uint64, dst []byte) error
	WriteBlock(ctx context.Context, dev uint32, blockNo uint64, src []byte) error
}
