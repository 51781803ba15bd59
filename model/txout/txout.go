package txout

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dario-ramos/bitprim-blockchain/model/script"
	"github.com/dario-ramos/bitprim-blockchain/util/amount"
)

type TxOut struct {
	value        amount.Amount
	scriptPubKey *script.Script
}

func NewTxOut(value amount.Amount, scriptPubKey *script.Script) *TxOut {
	return &TxOut{
		value:        value,
		scriptPubKey: scriptPubKey,
	}
}

func (txOut *TxOut) GetValue() amount.Amount {
	return txOut.value
}

func (txOut *TxOut) GetScriptPubKey() *script.Script {
	return txOut.scriptPubKey
}

func (txOut *TxOut) EncodeSize() uint32 {
	return 8 + txOut.scriptPubKey.EncodeSize()
}

func (txOut *TxOut) Encode(writer io.Writer) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(txOut.value))
	if _, err := writer.Write(buf[:]); err != nil {
		return err
	}
	return txOut.scriptPubKey.Encode(writer)
}

func (txOut *TxOut) Decode(reader io.Reader) error {
	var buf [8]byte
	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		return err
	}
	txOut.value = amount.Amount(binary.LittleEndian.Uint64(buf[:]))
	txOut.scriptPubKey = script.NewEmptyScript()
	return txOut.scriptPubKey.Decode(reader)
}

func (txOut *TxOut) String() string {
	return fmt.Sprintf("TxOut(value:%d, script size:%d)", txOut.value, txOut.scriptPubKey.Size())
}
