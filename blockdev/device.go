// Package blockdev provides the sector addressed device a filesystem lives on.
package blockdev

import (
	"errors"
	"fmt"
	"os"

	"github.com/aligator/fatvfs/checkpoint"
	"github.com/spf13/afero"
)

// These errors may occur while accessing a device.
var (
	ErrShortTransfer = errors.New("block transfer incomplete")
	ErrOutOfRange    = errors.New("block out of range")
	ErrBufferSize    = errors.New("buffer does not match the block size")
)

// BlockDevice is a synchronous, sector addressed device.
// Every call transfers exactly BlockSize() bytes.
//
// Generated mock using mockgen:
//
//	mockgen -source=device.go -destination=mock_device.go -package=blockdev
type BlockDevice interface {
	ReadBlock(sector uint64, p []byte) error
	WriteBlock(sector uint64, p []byte) error
	BlockSize() uint32
	TotalBlocks() uint64
}

// Syncer is implemented by devices which buffer writes.
type Syncer interface {
	Sync() error
}

// ImageDevice is a BlockDevice backed by an image file.
// Any afero.File works, so the image may live on the OS filesystem or in memory.
type ImageDevice struct {
	file      afero.File
	blockSize uint32
	blocks    uint64
}

// NewImageDevice uses the already opened file as device. The number of blocks is
// derived from the file size, a trailing partial block is ignored.
func NewImageDevice(file afero.File, blockSize uint32) (*ImageDevice, error) {
	if blockSize == 0 || blockSize&(blockSize-1) != 0 {
		return nil, fmt.Errorf("invalid block size %d", blockSize)
	}

	stat, err := file.Stat()
	if err != nil {
		return nil, checkpoint.From(err)
	}

	return &ImageDevice{
		file:      file,
		blockSize: blockSize,
		blocks:    uint64(stat.Size()) / uint64(blockSize),
	}, nil
}

// OpenImage opens an existing image file.
func OpenImage(fs afero.Fs, name string, blockSize uint32, readOnly bool) (*ImageDevice, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}

	file, err := fs.OpenFile(name, flag, 0)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	dev, err := NewImageDevice(file, blockSize)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return dev, nil
}

// CreateImage creates (or overwrites) an image file of the given size filled with zeroes.
func CreateImage(fs afero.Fs, name string, size int64, blockSize uint32) (*ImageDevice, error) {
	file, err := fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	if err := file.Truncate(size); err != nil {
		_ = file.Close()
		return nil, checkpoint.From(err)
	}

	dev, err := NewImageDevice(file, blockSize)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return dev, nil
}

func (d *ImageDevice) check(sector uint64, p []byte) error {
	if uint32(len(p)) != d.blockSize {
		return checkpoint.Wrap(fmt.Errorf("got %d bytes, block size is %d", len(p), d.blockSize), ErrBufferSize)
	}
	if sector >= d.blocks {
		return checkpoint.Wrap(fmt.Errorf("sector %d, device has %d", sector, d.blocks), ErrOutOfRange)
	}
	return nil
}

func (d *ImageDevice) ReadBlock(sector uint64, p []byte) error {
	if err := d.check(sector, p); err != nil {
		return err
	}

	n, err := d.file.ReadAt(p, int64(sector)*int64(d.blockSize))
	if n == len(p) {
		// ReadAt may report io.EOF together with the last full block.
		return nil
	}
	if err != nil {
		return checkpoint.Wrap(err, ErrShortTransfer)
	}
	return checkpoint.Wrap(fmt.Errorf("read %d of %d bytes", n, len(p)), ErrShortTransfer)
}

func (d *ImageDevice) WriteBlock(sector uint64, p []byte) error {
	if err := d.check(sector, p); err != nil {
		return err
	}

	n, err := d.file.WriteAt(p, int64(sector)*int64(d.blockSize))
	if err != nil {
		return checkpoint.Wrap(err, ErrShortTransfer)
	}
	if n != len(p) {
		return checkpoint.Wrap(fmt.Errorf("wrote %d of %d bytes", n, len(p)), ErrShortTransfer)
	}
	return nil
}

func (d *ImageDevice) BlockSize() uint32 {
	return d.blockSize
}

func (d *ImageDevice) TotalBlocks() uint64 {
	return d.blocks
}

// Sync flushes the image file.
func (d *ImageDevice) Sync() error {
	return checkpoint.From(d.file.Sync())
}

// Close closes the image file.
func (d *ImageDevice) Close() error {
	return checkpoint.From(d.file.Close())
}
