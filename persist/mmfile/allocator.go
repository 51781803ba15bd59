package mmfile

import (
	"encoding/binary"
	"math"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
)

const (
	// allocatorPrefixSize is the persisted next-index counter.
	allocatorPrefixSize = 8
)

// RecordAllocator hands out fixed-size record slots from a base offset in
// the mapped file. Slots are addressed by monotonically increasing indices;
// the next index is persisted at the base so the table survives restarts.
// Only the single writer allocates.
type RecordAllocator struct {
	file       *MmapFile
	base       int64
	recordSize uint32
	count      uint64
}

func NewRecordAllocator(file *MmapFile, base int64, recordSize uint32) *RecordAllocator {
	return &RecordAllocator{
		file:       file,
		base:       base,
		recordSize: recordSize,
	}
}

// Create initializes the counter to zero, first growing the file to cover the
// allocator prefix when it does not already.
func (a *RecordAllocator) Create() error {
	if a.base+allocatorPrefixSize > a.file.Size() {
		if err := a.file.Resize(a.base + allocatorPrefixSize); err != nil {
			return err
		}
	}
	a.count = 0
	a.writeCount()
	return nil
}

// Start loads the persisted next-index counter.
func (a *RecordAllocator) Start() error {
	if a.base+allocatorPrefixSize > a.file.Size() {
		return errcode.NewError(errcode.ErrorMapFileFailed, "allocator prefix past end of file")
	}
	a.count = binary.LittleEndian.Uint64(a.file.Data()[a.base : a.base+allocatorPrefixSize])
	return nil
}

func (a *RecordAllocator) Count() uint64 {
	return a.count
}

func (a *RecordAllocator) writeCount() {
	binary.LittleEndian.PutUint64(a.file.Data()[a.base:a.base+allocatorPrefixSize], a.count)
}

func (a *RecordAllocator) recordOffset(index uint32) int64 {
	return a.base + allocatorPrefixSize + int64(index)*int64(a.recordSize)
}

// Allocate reserves the next record slot, growing the file when the slot
// would fall past the mapped size. Growth doubles the region so resizes
// stay amortized.
func (a *RecordAllocator) Allocate() (uint32, error) {
	if a.count >= math.MaxUint32 {
		return 0, errcode.New(errcode.ErrorAllocatorExhausted)
	}
	index := uint32(a.count)
	end := a.recordOffset(index) + int64(a.recordSize)
	if end > a.file.Size() {
		newSize := a.file.Size() * 2
		if newSize < end {
			newSize = end
		}
		if err := a.file.Resize(newSize); err != nil {
			return 0, err
		}
	}
	a.count++
	a.writeCount()
	return index, nil
}

// Get returns the slot bytes for a previously allocated index. The slice is
// only valid until the next Resize.
func (a *RecordAllocator) Get(index uint32) []byte {
	offset := a.recordOffset(index)
	return a.file.Data()[offset : offset+int64(a.recordSize)]
}

// Sync flushes the mapped file, making all allocations durable.
func (a *RecordAllocator) Sync() error {
	return a.file.Sync()
}
