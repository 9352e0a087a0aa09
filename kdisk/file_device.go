package kdisk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileDevice is a BlockDevice backed by one regular file per device
// number: a per-file handle cache guarded by its own mutex, and a
// seek-then-read/write-then-sync sequence on every block access.
type FileDevice struct {
	dir       string
	blockSize int

	mu    sync.Mutex
	files map[uint32]*os.File

	blocksRead    int64
	blocksWritten int64
}

// NewFileDevice creates (if needed) dir and returns a FileDevice whose
// files live under it, one named "dev-<n>.img" per device number.
func NewFileDevice(dir string, blockSize int) (*FileDevice, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("kdisk: blockSize must be positive, got %d", blockSize)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kdisk: create directory %s: %w", dir, err)
	}
	return &FileDevice{
		dir:       dir,
		blockSize: blockSize,
		files:     make(map[uint32]*os.File),
	}, nil
}

func (d *FileDevice) getFile(dev uint32) (*os.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if f, ok := d.files[dev]; ok {
		return f, nil
	}
	path := filepath.Join(d.dir, fmt.Sprintf("dev-%d.img", dev))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("kdisk: open device file %s: %w", path, err)
	}
	d.files[dev] = f
	return f, nil
}

// ReadBlock reads exactly blockSize bytes from dev at blockNo into dst.
// A block that has never been written reads back as zeroes, since the
// backing file may not yet be that long.
func (d *FileDevice) ReadBlock(ctx context.Context, dev uint32, blockNo uint64, dst []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(dst) != d.blockSize {
		return fmt.Errorf("kdisk: ReadBlock: dst has len %d, want %d", len(dst), d.blockSize)
	}
	f, err := d.getFile(dev)
	if err != nil {
		return err
	}

	offset := int64(blockNo) * int64(d.blockSize)
	n, err := f.ReadAt(dst, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("kdisk: read dev %d block %d: %w", dev, blockNo, err)
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}

	d.mu.Lock()
	d.blocksRead++
	d.mu.Unlock()
	return nil
}

// WriteBlock writes exactly blockSize bytes from src to dev at blockNo
// and fsyncs the file before returning.
func (d *FileDevice) WriteBlock(ctx context.Context, dev uint32, blockNo uint64, src []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(src) != d.blockSize {
		return fmt.Errorf("kdisk: WriteBlock: src has len %d, want %d", len(src), d.blockSize)
	}
	f, err := d.getFile(dev)
	if err != nil {
		return err
	}

	offset := int64(blockNo) * int64(d.blockSize)
	if _, err := f.WriteAt(src, offset); err != nil {
		return fmt.Errorf("kdisk: write dev %d block %d: %w", dev, blockNo, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("kdisk: sync dev %d: %w", dev, err)
	}

	d.mu.Lock()
	d.blocksWritten++
	d.mu.Unlock()
	return nil
}

// Stats returns the cumulative number of blocks read and written.
func (d *FileDevice) Stats() (read, written int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blocksRead, d.blocksWritten
}

// Close closes every open device file.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for dev, f := range d.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("kdisk: close device %d: %w", dev, err)
		}
	}
	d.files = make(map[uint32]*os.File)
	return firstErr
}
