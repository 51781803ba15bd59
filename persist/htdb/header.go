package htdb

import (
	"encoding/binary"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/persist/mmfile"
)

const (
	// NullIndex marks an empty bucket or the end of a chain.
	NullIndex uint32 = 0xffffffff

	bucketCountSize = 4
	bucketSize      = 4
)

// HeaderSize returns the on-disk size of a header with the given bucket
// count.
func HeaderSize(buckets uint32) int64 {
	return bucketCountSize + int64(buckets)*bucketSize
}

// Header is the bucket array at the head of the table file. Each bucket
// holds the record index at the head of its chain.
type Header struct {
	file    *mmfile.MmapFile
	base    int64
	buckets uint32
}

func NewHeader(file *mmfile.MmapFile, base int64) *Header {
	return &Header{file: file, base: base}
}

// Create writes the bucket count and sets every bucket to null.
func (h *Header) Create(buckets uint32) error {
	h.buckets = buckets
	if h.base+HeaderSize(buckets) > h.file.Size() {
		if err := h.file.Resize(h.base + HeaderSize(buckets)); err != nil {
			return err
		}
	}
	data := h.file.Data()
	binary.LittleEndian.PutUint32(data[h.base:h.base+bucketCountSize], buckets)
	for bucket := uint32(0); bucket < buckets; bucket++ {
		h.Write(bucket, NullIndex)
	}
	return nil
}

// Start validates the stored bucket count against the mapped size and makes
// the array available.
func (h *Header) Start() error {
	if h.base+bucketCountSize > h.file.Size() {
		return errcode.New(errcode.ErrorBadBucketCount)
	}
	data := h.file.Data()
	buckets := binary.LittleEndian.Uint32(data[h.base : h.base+bucketCountSize])
	if buckets == 0 || h.base+HeaderSize(buckets) > h.file.Size() {
		return errcode.New(errcode.ErrorBadBucketCount)
	}
	h.buckets = buckets
	return nil
}

func (h *Header) Size() uint32 {
	return h.buckets
}

// BucketFor maps a key to its bucket with a stable hash over the key bytes.
// Keys are sha256 digests, so the leading bytes already carry uniform
// entropy.
func (h *Header) BucketFor(key []byte) uint32 {
	return uint32(binary.LittleEndian.Uint64(key[:8]) % uint64(h.buckets))
}

func (h *Header) bucketOffset(bucket uint32) int64 {
	return h.base + bucketCountSize + int64(bucket)*bucketSize
}

// Read returns the record index at the head of the bucket's chain.
func (h *Header) Read(bucket uint32) uint32 {
	offset := h.bucketOffset(bucket)
	return binary.LittleEndian.Uint32(h.file.Data()[offset : offset+bucketSize])
}

// Write publishes a new chain head for the bucket.
func (h *Header) Write(bucket uint32, index uint32) {
	offset := h.bucketOffset(bucket)
	binary.LittleEndian.PutUint32(h.file.Data()[offset:offset+bucketSize], index)
}
