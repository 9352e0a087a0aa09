package kdisk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDeviceReadUnwrittenIsZero(t *testing.T) {
	d := NewMemDevice(16)
	dst := make([]byte, 16)
	for i := range dst {
		dst[i] = 0xAA
	}
	require.NoError(t, d.ReadBlock(context.Background(), 1, 7, dst))
	for _, b := range dst {
		assert.Equal(t, byte(0), b)
	}
	assert.Equal(t, 1, d.ReadCalls())
}

func TestMemDeviceRoundTrip(t *testing.T) {
	d := NewMemDevice(8)
	ctx := context.Background()

	src := []byte("12345678")
	require.NoError(t, d.WriteBlock(ctx, 2, 3, src))

	dst := make([]byte, 8)
	require.NoError(t, d.ReadBlock(ctx, 2, 3, dst))
	assert.Equal(t, src, dst)
	assert.Equal(t, 1, d.WriteCalls())
	assert.Equal(t, 1, d.ReadCalls())
}

func TestFileDeviceRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "disk")
	fd, err := NewFileDevice(dir, 64)
	require.NoError(t, err)
	defer fd.Close()

	ctx := context.Background()
	src := make([]byte, 64)
	copy(src, "hello block device")
	require.NoError(t, fd.WriteBlock(ctx, 0, 5, src))

	dst := make([]byte, 64)
	require.NoError(t, fd.ReadBlock(ctx, 0, 5, dst))
	assert.Equal(t, src, dst)

	read, written := fd.Stats()
	assert.Equal(t, int64(1), read)
	assert.Equal(t, int64(1), written)
}

func TestFileDeviceReadUnwrittenBlockIsZero(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "disk")
	fd, err := NewFileDevice(dir, 32)
	require.NoError(t, err)
	defer fd.Close()

	dst := make([]byte, 32)
	for i := range dst {
		dst[i] = 0xFF
	}
	require.NoError(t, fd.ReadBlock(context.Background(), 3, 9, dst))
	for _, b := range dst {
		assert.Equal(t, byte(0), b)
	}
}

func TestFileDeviceRejectsWrongSizedBuffers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "disk")
	fd, err := NewFileDevice(dir, 32)
	require.NoError(t, err)
	defer fd.Close()

	err = fd.ReadBlock(context.Background(), 0, 0, make([]byte, 16))
	assert.Error(t, err)
}

func TestNewFileDeviceCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "disk")
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	_, err = NewFileDevice(dir, 16)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
