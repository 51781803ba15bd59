package mmfile

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/log"
)

// MmapFile owns a file memory mapped into a contiguous writable region.
// Callers hold positions into the region as offsets, never as pointers, so
// a remap on resize cannot invalidate them.
type MmapFile struct {
	file *os.File
	data []byte
	size int64
}

// Open maps the file at path, creating it with minSize bytes when absent or
// smaller.
func Open(path string, minSize int64) (*MmapFile, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errcode.NewError(errcode.ErrorMapFileFailed, err.Error())
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errcode.NewError(errcode.ErrorMapFileFailed, err.Error())
	}

	mf := &MmapFile{file: file, size: info.Size()}
	if mf.size < minSize {
		if err := mf.truncate(minSize); err != nil {
			file.Close()
			return nil, err
		}
	}
	if err := mf.mapRegion(); err != nil {
		file.Close()
		return nil, err
	}
	return mf, nil
}

func (mf *MmapFile) mapRegion() error {
	data, err := unix.Mmap(int(mf.file.Fd()), 0, int(mf.size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errcode.NewError(errcode.ErrorMapFileFailed, err.Error())
	}
	mf.data = data
	return nil
}

func (mf *MmapFile) truncate(n int64) error {
	if err := mf.file.Truncate(n); err != nil {
		return errcode.NewError(errcode.ErrorResizeFileFailed, err.Error())
	}
	mf.size = n
	return nil
}

func (mf *MmapFile) Size() int64 {
	return mf.size
}

// Data exposes the mapped region. The slice is invalidated by Resize.
func (mf *MmapFile) Data() []byte {
	return mf.data
}

// Resize grows the file to n bytes and remaps it. Shrinking is not
// supported.
func (mf *MmapFile) Resize(n int64) error {
	if n <= mf.size {
		return nil
	}
	if mf.data != nil {
		if err := unix.Munmap(mf.data); err != nil {
			return errcode.NewError(errcode.ErrorResizeFileFailed, err.Error())
		}
		mf.data = nil
	}
	if err := mf.truncate(n); err != nil {
		return err
	}
	log.Debug("mmfile: resized %s to %d bytes", mf.file.Name(), n)
	return mf.mapRegion()
}

// Sync flushes dirty pages to disk.
func (mf *MmapFile) Sync() error {
	if err := unix.Msync(mf.data, unix.MS_SYNC); err != nil {
		return errcode.NewError(errcode.ErrorSyncFileFailed, err.Error())
	}
	return nil
}

func (mf *MmapFile) Close() error {
	var firstErr error
	if mf.data != nil {
		if err := unix.Munmap(mf.data); err != nil {
			firstErr = errors.Wrap(err, "munmap")
		}
		mf.data = nil
	}
	if err := mf.file.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrap(err, "close")
	}
	return firstErr
}
