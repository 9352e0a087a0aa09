package kdisk

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleDevice is a BlockDevice backed by an embedded Pebble instance,
// storing each block under a key built from (dev, blockNo). It exists
// to show BlockDevice is a real pluggable seam — a second, unrelated
// storage engine satisfies the exact same contract FileDevice does.
type PebbleDevice struct {
	db        *pebble.DB
	blockSize int
}

// OpenPebbleDevice opens (creating if absent) a Pebble instance at dir.
func OpenPebbleDevice(dir string, blockSize int) (*PebbleDevice, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("kdisk: blockSize must be positive, got %d", blockSize)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("kdisk: open pebble at %s: %w", dir, err)
	}
	return &PebbleDevice{db: db, blockSize: blockSize}, nil
}

func blockKey(dev uint32, blockNo uint64) []byte {
	key := make([]byte, 4+8)
	binary.BigEndian.PutUint32(key[:4], dev)
	binary.BigEndian.PutUint64(key[4:], blockNo)
	return key
}

// ReadBlock reads the block's contents into dst, or leaves dst zeroed
// if the block was never written.
func (p *PebbleDevice) ReadBlock(ctx context.Context, dev uint32, blockNo uint64, dst []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(dst) != p.blockSize {
		return fmt.Errorf("kdisk: ReadBlock: dst has len %d, want %d", len(dst), p.blockSize)
	}

	val, closer, err := p.db.Get(blockKey(dev, blockNo))
	if err == pebble.ErrNotFound {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("kdisk: pebble get dev %d block %d: %w", dev, blockNo, err)
	}
	defer closer.Close()

	n := copy(dst, val)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// WriteBlock durably stores src under (dev, blockNo).
func (p *PebbleDevice) WriteBlock(ctx context.Context, dev uint32, blockNo uint64, src []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(src) != p.blockSize {
		return fmt.Errorf("kdisk: WriteBlock: src has len %d, want %d", len(src), p.blockSize)
	}
	if err := p.db.Set(blockKey(dev, blockNo), src, &pebble.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("kdisk: pebble set dev %d block %d: %w", dev, blockNo, err)
	}
	return nil
}

// Close closes the underlying Pebble instance.
func (p *PebbleDevice) Close() error {
	return p.db.Close()
}
