package htdb

import (
	"bytes"
	"encoding/binary"

	"github.com/dario-ramos/bitprim-blockchain/persist/mmfile"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

const (
	// KeySize is the fixed key width, a sha256 digest.
	KeySize = util.Hash256Size

	nextIndexSize = 4
)

// RecordSize returns the slot size for a table holding values of the given
// width: key, next-index link, value.
func RecordSize(valueSize uint32) uint32 {
	return KeySize + nextIndexSize + valueSize
}

// RecordMap is a separate-chaining hash table over fixed-size mapped
// records. Collisions chain through the next-index field; duplicate keys
// shadow, with the most recent store first in the chain.
type RecordMap struct {
	header    *Header
	allocator *mmfile.RecordAllocator
	valueSize uint32
}

func NewRecordMap(header *Header, allocator *mmfile.RecordAllocator, valueSize uint32) *RecordMap {
	return &RecordMap{
		header:    header,
		allocator: allocator,
		valueSize: valueSize,
	}
}

// Get returns a read-only view of the value bytes for key, or nil. A bucket
// collision does not imply a key collision, so the full key is compared at
// every link.
func (m *RecordMap) Get(key []byte) []byte {
	bucket := m.header.BucketFor(key)
	for index := m.header.Read(bucket); index != NullIndex; {
		record := m.allocator.Get(index)
		if bytes.Equal(record[:KeySize], key) {
			return record[KeySize+nextIndexSize:]
		}
		index = recordNext(record)
	}
	return nil
}

// Store allocates a record for key, lets write fill the value slot, then
// publishes it by swinging the bucket head. The head update comes last so a
// chain walk never reaches a half-written record.
func (m *RecordMap) Store(key []byte, write func(value []byte)) error {
	bucket := m.header.BucketFor(key)
	oldHead := m.header.Read(bucket)

	index, err := m.allocator.Allocate()
	if err != nil {
		return err
	}
	record := m.allocator.Get(index)
	copy(record[:KeySize], key)
	setRecordNext(record, oldHead)
	write(record[KeySize+nextIndexSize : KeySize+nextIndexSize+m.valueSize])

	m.header.Write(bucket, index)
	return nil
}

// Unlink removes the first record matching key by repointing its
// predecessor, or the bucket head, to its successor. The record slot itself
// is leaked; reclamation is left to offline compaction.
func (m *RecordMap) Unlink(key []byte) bool {
	bucket := m.header.BucketFor(key)

	previous := NullIndex
	for index := m.header.Read(bucket); index != NullIndex; {
		record := m.allocator.Get(index)
		next := recordNext(record)
		if bytes.Equal(record[:KeySize], key) {
			if previous == NullIndex {
				m.header.Write(bucket, next)
			} else {
				setRecordNext(m.allocator.Get(previous), next)
			}
			return true
		}
		previous = index
		index = next
	}
	return false
}

func recordNext(record []byte) uint32 {
	return binary.LittleEndian.Uint32(record[KeySize : KeySize+nextIndexSize])
}

func setRecordNext(record []byte, next uint32) {
	binary.LittleEndian.PutUint32(record[KeySize:KeySize+nextIndexSize], next)
}
