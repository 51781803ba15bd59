package tx

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/model/outpoint"
	"github.com/dario-ramos/bitprim-blockchain/model/script"
	"github.com/dario-ramos/bitprim-blockchain/model/txin"
	"github.com/dario-ramos/bitprim-blockchain/model/txout"
	"github.com/dario-ramos/bitprim-blockchain/util"
	"github.com/dario-ramos/bitprim-blockchain/util/amount"
)

const (
	TxVersion = 1

	// LockTimeThreshold separates height-interpreted lock times from
	// timestamp-interpreted ones.
	LockTimeThreshold = 500000000
)

type Tx struct {
	hash     util.Hash
	Version  int32
	ins      []*txin.TxIn
	outs     []*txout.TxOut
	lockTime uint32
}

func NewTx(lockTime uint32, version int32) *Tx {
	return &Tx{lockTime: lockTime, Version: version}
}

func NewEmptyTx() *Tx {
	return &Tx{Version: TxVersion}
}

func (tx *Tx) AddTxIn(txIn *txin.TxIn) {
	tx.ins = append(tx.ins, txIn)
}

func (tx *Tx) AddTxOut(txOut *txout.TxOut) {
	tx.outs = append(tx.outs, txOut)
}

func (tx *Tx) GetIns() []*txin.TxIn {
	return tx.ins
}

func (tx *Tx) GetOuts() []*txout.TxOut {
	return tx.outs
}

func (tx *Tx) GetLockTime() uint32 {
	return tx.lockTime
}

func (tx *Tx) GetTxOut(index int) *txout.TxOut {
	if index < 0 || index >= len(tx.outs) {
		return nil
	}
	return tx.outs[index]
}

func (tx *Tx) EncodeSize() uint32 {
	size := uint32(8) // version + locktime
	size += util.VarIntSerializeSize(uint64(len(tx.ins)))
	for _, in := range tx.ins {
		size += in.EncodeSize()
	}
	size += util.VarIntSerializeSize(uint64(len(tx.outs)))
	for _, out := range tx.outs {
		size += out.EncodeSize()
	}
	return size
}

func (tx *Tx) Encode(writer io.Writer) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(tx.Version))
	if _, err := writer.Write(buf[:]); err != nil {
		return err
	}
	if err := util.WriteVarInt(writer, uint64(len(tx.ins))); err != nil {
		return err
	}
	for _, in := range tx.ins {
		if err := in.Encode(writer); err != nil {
			return err
		}
	}
	if err := util.WriteVarInt(writer, uint64(len(tx.outs))); err != nil {
		return err
	}
	for _, out := range tx.outs {
		if err := out.Encode(writer); err != nil {
			return err
		}
	}
	binary.LittleEndian.PutUint32(buf[:], tx.lockTime)
	_, err := writer.Write(buf[:])
	return err
}

func (tx *Tx) Decode(reader io.Reader) error {
	var buf [4]byte
	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		return err
	}
	tx.Version = int32(binary.LittleEndian.Uint32(buf[:]))

	inCount, err := util.ReadVarInt(reader)
	if err != nil {
		return err
	}
	tx.ins = make([]*txin.TxIn, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		in := new(txin.TxIn)
		if err := in.Decode(reader); err != nil {
			return err
		}
		tx.ins = append(tx.ins, in)
	}

	outCount, err := util.ReadVarInt(reader)
	if err != nil {
		return err
	}
	tx.outs = make([]*txout.TxOut, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		out := new(txout.TxOut)
		if err := out.Decode(reader); err != nil {
			return err
		}
		tx.outs = append(tx.outs, out)
	}

	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		return err
	}
	tx.lockTime = binary.LittleEndian.Uint32(buf[:])
	return nil
}

// GetHash returns the double sha256 of the serialization, cached after the
// first call. Transactions are immutable once built.
func (tx *Tx) GetHash() util.Hash {
	if !tx.hash.IsNull() {
		return tx.hash
	}
	buf := bytes.NewBuffer(make([]byte, 0, tx.EncodeSize()))
	if err := tx.Encode(buf); err != nil {
		return util.HashZero
	}
	tx.hash = util.DoubleSha256Hash(buf.Bytes())
	return tx.hash
}

func (tx *Tx) IsCoinBase() bool {
	return len(tx.ins) == 1 && tx.ins[0].PreviousOutPoint.IsNull()
}

// IsFinal reports whether the transaction can be included in a block at the
// given height and time.
func (tx *Tx) IsFinal(blockHeight int32, blockTime int64) bool {
	if tx.lockTime == 0 {
		return true
	}

	lockTimeLimit := int64(0)
	if tx.lockTime < LockTimeThreshold {
		lockTimeLimit = int64(blockHeight)
	} else {
		lockTimeLimit = blockTime
	}

	if int64(tx.lockTime) < lockTimeLimit {
		return true
	}

	for _, in := range tx.ins {
		if in.Sequence != txin.SequenceFinal {
			return false
		}
	}

	return true
}

// CheckRegularTransaction performs the stateless sanity checks for a
// non-coinbase transaction.
func (tx *Tx) CheckRegularTransaction() error {
	if err := tx.checkTransactionCommon(); err != nil {
		return err
	}
	for _, in := range tx.ins {
		if in.PreviousOutPoint.IsNull() {
			return errcode.New(errcode.ErrorPreviousOutputNull)
		}
	}
	return nil
}

// CheckCoinbaseTransaction performs the stateless sanity checks for the
// coinbase transaction.
func (tx *Tx) CheckCoinbaseTransaction() error {
	if !tx.IsCoinBase() {
		return errcode.New(errcode.ErrorFirstNotCoinbase)
	}
	if err := tx.checkTransactionCommon(); err != nil {
		return err
	}
	size := tx.ins[0].GetScriptSig().Size()
	if size < script.MinCoinbaseScriptSize || size > script.MaxCoinbaseScriptSize {
		return errcode.New(errcode.ErrorCoinbaseScriptSize)
	}
	return nil
}

func (tx *Tx) checkTransactionCommon() error {
	if len(tx.ins) == 0 || len(tx.outs) == 0 {
		return errcode.New(errcode.ErrorEmptyTransaction)
	}

	totalOut := amount.Amount(0)
	for _, out := range tx.outs {
		if !out.GetValue().IsValid() {
			return errcode.New(errcode.ErrorOutputValueOverflow)
		}
		totalOut += out.GetValue()
		if !totalOut.IsValid() {
			return errcode.New(errcode.ErrorTotalOutputValueOverflow)
		}
	}

	return nil
}

// CheckDuplicateIns rejects an input already present in the set and records
// every input of this transaction into it.
func (tx *Tx) CheckDuplicateIns(outPointSet *map[outpoint.OutPoint]bool) error {
	for _, in := range tx.ins {
		if _, ok := (*outPointSet)[*in.PreviousOutPoint]; ok {
			return errcode.New(errcode.ErrorDuplicateTxInput)
		}
		(*outPointSet)[*in.PreviousOutPoint] = true
	}
	return nil
}

// GetSigOpCountWithoutP2SH counts legacy sigops across all input and output
// scripts.
func (tx *Tx) GetSigOpCountWithoutP2SH() int {
	n := 0
	for _, in := range tx.ins {
		n += in.GetScriptSig().GetSigOpCount(false)
	}
	for _, out := range tx.outs {
		n += out.GetScriptPubKey().GetSigOpCount(false)
	}
	return n
}

func (tx *Tx) GetValueOut() amount.Amount {
	var valueOut amount.Amount
	for _, out := range tx.outs {
		valueOut += out.GetValue()
	}
	return valueOut
}
