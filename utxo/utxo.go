package utxo

import (
	"encoding/binary"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/log"
	"github.com/dario-ramos/bitprim-blockchain/model/outpoint"
	"github.com/dario-ramos/bitprim-blockchain/persist/htdb"
	"github.com/dario-ramos/bitprim-blockchain/persist/mmfile"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

const (
	// valueSize is the stored spend: spending tx hash and input index.
	valueSize = util.Hash256Size + 4
)

// StatInfo reports table occupancy; load factor is Rows / Buckets.
type StatInfo struct {
	Buckets uint32
	Rows    uint64
}

// UtxoIndex maps an outpoint to the inpoint spending it. A present record
// means the output is spent on the committed chain; absence means unspent
// or nonexistent.
type UtxoIndex struct {
	file      *mmfile.MmapFile
	header    *htdb.Header
	allocator *mmfile.RecordAllocator
	recordMap *htdb.RecordMap

	loadFactorWarn float64
	warned         bool
}

// NewUtxoIndex maps the table file at path. Call Create on a fresh file or
// Start on an existing one before any other operation.
func NewUtxoIndex(path string, loadFactorWarn float64) (*UtxoIndex, error) {
	file, err := mmfile.Open(path, htdb.HeaderSize(1))
	if err != nil {
		return nil, err
	}
	u := &UtxoIndex{file: file, loadFactorWarn: loadFactorWarn}
	u.header = htdb.NewHeader(file, 0)
	return u, nil
}

func (u *UtxoIndex) attach(buckets uint32) {
	base := htdb.HeaderSize(buckets)
	u.allocator = mmfile.NewRecordAllocator(u.file, base, htdb.RecordSize(valueSize))
	u.recordMap = htdb.NewRecordMap(u.header, u.allocator, valueSize)
}

// Create initializes an empty table with the given bucket count. The count
// is fixed for the lifetime of the file; separate chaining tolerates load
// factors above one.
func (u *UtxoIndex) Create(buckets uint32) error {
	if err := u.header.Create(buckets); err != nil {
		return err
	}
	u.attach(buckets)
	return u.allocator.Create()
}

// Start validates and loads an existing table.
func (u *UtxoIndex) Start() error {
	if err := u.header.Start(); err != nil {
		return err
	}
	u.attach(u.header.Size())
	if err := u.allocator.Start(); err != nil {
		return err
	}
	u.checkLoadFactor()
	return nil
}

// keyFor derives the table key: sha256 over hash and little-endian index.
// The raw index has almost no bit-distribution entropy, so re-hashing is
// required to keep buckets even.
func keyFor(op *outpoint.OutPoint) util.Hash {
	var point [util.Hash256Size + 4]byte
	copy(point[:], op.Hash[:])
	binary.LittleEndian.PutUint32(point[util.Hash256Size:], op.Index)
	return util.Sha256Hash(point[:])
}

// Get returns the inpoint spending the outpoint, or nil when the record is
// absent.
func (u *UtxoIndex) Get(op *outpoint.OutPoint) *outpoint.InPoint {
	key := keyFor(op)
	value := u.recordMap.Get(key[:])
	if value == nil {
		return nil
	}
	in := new(outpoint.InPoint)
	copy(in.Hash[:], value[:util.Hash256Size])
	in.Index = binary.LittleEndian.Uint32(value[util.Hash256Size:valueSize])
	return in
}

// Store records the spend of op by in.
func (u *UtxoIndex) Store(op *outpoint.OutPoint, in *outpoint.InPoint) error {
	key := keyFor(op)
	err := u.recordMap.Store(key[:], func(value []byte) {
		copy(value[:util.Hash256Size], in.Hash[:])
		binary.LittleEndian.PutUint32(value[util.Hash256Size:], in.Index)
	})
	if err != nil {
		return err
	}
	u.checkLoadFactor()
	return nil
}

// Remove deletes the spend record for op. The outpoint must have been
// stored previously.
func (u *UtxoIndex) Remove(op *outpoint.OutPoint) error {
	key := keyFor(op)
	if !u.recordMap.Unlink(key[:]) {
		return errcode.New(errcode.ErrorUnspentOutput)
	}
	return nil
}

// Sync makes all stored records durable.
func (u *UtxoIndex) Sync() error {
	return u.allocator.Sync()
}

func (u *UtxoIndex) StatInfo() StatInfo {
	return StatInfo{
		Buckets: u.header.Size(),
		Rows:    u.allocator.Count(),
	}
}

func (u *UtxoIndex) Close() error {
	return u.file.Close()
}

func (u *UtxoIndex) checkLoadFactor() {
	if u.warned || u.loadFactorWarn <= 0 {
		return
	}
	stat := u.StatInfo()
	if stat.Buckets == 0 {
		return
	}
	loadFactor := float64(stat.Rows) / float64(stat.Buckets)
	if loadFactor > u.loadFactorWarn {
		u.warned = true
		log.Warn("utxo index load factor %.2f exceeds %.2f (rows=%d buckets=%d); "+
			"recreate with more buckets", loadFactor, u.loadFactorWarn, stat.Rows, stat.Buckets)
	}
}
