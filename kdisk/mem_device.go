package kdisk

import (
	"context"
	"fmt"
	"sync"
)

// MemDevice is an in-memory BlockDevice that counts calls, used by
// kbuf's tests to assert exactly how many real disk reads a scenario
// triggers.
type MemDevice struct {
	blockSize int

	mu        sync.Mutex
	blocks    map[[2]uint64][]byte
	readCalls int
	writeCall int
}

// NewMemDevice returns an empty MemDevice; every unwritten block reads
// back as zeroes.
func NewMemDevice(blockSize int) *MemDevice {
	return &MemDevice{
		blockSize: blockSize,
		blocks:    make(map[[2]uint64][]byte),
	}
}

func memKey(dev uint32, blockNo uint64) [2]uint64 {
	return [2]uint64{uint64(dev), blockNo}
}

func (d *MemDevice) ReadBlock(ctx context.Context, dev uint32, blockNo uint64, dst []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(dst) != d.blockSize {
		return fmt.Errorf("kdisk: ReadBlock: dst has len %d, want %d", len(dst), d.blockSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.readCalls++

	if data, ok := d.blocks[memKey(dev, blockNo)]; ok {
		copy(dst, data)
		return nil
	}
	for i := range dst {
		dst[i] = 0
	}
	return nil
}

func (d *MemDevice) WriteBlock(ctx context.Context, dev uint32, blockNo uint64, src []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(src) != d.blockSize {
		return fmt.Errorf("kdisk: WriteBlock: src has len %d, want %d", len(src), d.blockSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeCall++

	stored := make([]byte, d.blockSize)
	copy(stored, src)
	d.blocks[memKey(dev, blockNo)] = stored
	return nil
}

// ReadCalls returns how many times ReadBlock has been called.
func (d *MemDevice) ReadCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readCalls
}

// WriteCalls returns how many times WriteBlock has been called.
func (d *MemDevice) WriteCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeCall
}
