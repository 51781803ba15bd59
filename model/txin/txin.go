package txin

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dario-ramos/bitprim-blockchain/model/outpoint"
	"github.com/dario-ramos/bitprim-blockchain/model/script"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

const (
	// SequenceFinal disables the input's contribution to transaction
	// lock-time enforcement.
	SequenceFinal = 0xffffffff
)

type TxIn struct {
	PreviousOutPoint *outpoint.OutPoint
	scriptSig        *script.Script
	Sequence         uint32
}

func NewTxIn(previousOutPoint *outpoint.OutPoint, scriptSig *script.Script, sequence uint32) *TxIn {
	txIn := TxIn{PreviousOutPoint: previousOutPoint, scriptSig: scriptSig, Sequence: sequence}
	if txIn.PreviousOutPoint == nil {
		txIn.PreviousOutPoint = outpoint.NewOutPoint(util.HashZero, 0xffffffff)
	}
	return &txIn
}

func (txIn *TxIn) GetScriptSig() *script.Script {
	return txIn.scriptSig
}

func (txIn *TxIn) SetScriptSig(scriptSig *script.Script) {
	txIn.scriptSig = scriptSig
}

func (txIn *TxIn) EncodeSize() uint32 {
	return txIn.PreviousOutPoint.EncodeSize() + txIn.scriptSig.EncodeSize() + 4
}

func (txIn *TxIn) Encode(writer io.Writer) error {
	if err := txIn.PreviousOutPoint.Encode(writer); err != nil {
		return err
	}
	if err := txIn.scriptSig.Encode(writer); err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], txIn.Sequence)
	_, err := writer.Write(buf[:])
	return err
}

func (txIn *TxIn) Decode(reader io.Reader) error {
	if txIn.PreviousOutPoint == nil {
		txIn.PreviousOutPoint = new(outpoint.OutPoint)
	}
	if err := txIn.PreviousOutPoint.Decode(reader); err != nil {
		return err
	}
	txIn.scriptSig = script.NewEmptyScript()
	if err := txIn.scriptSig.Decode(reader); err != nil {
		return err
	}
	var buf [4]byte
	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		return err
	}
	txIn.Sequence = binary.LittleEndian.Uint32(buf[:])
	return nil
}

func (txIn *TxIn) String() string {
	return fmt.Sprintf("TxIn(%s, sequence:%d)", txIn.PreviousOutPoint.String(), txIn.Sequence)
}
