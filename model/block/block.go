package block

import (
	"bytes"
	"io"

	"github.com/dario-ramos/bitprim-blockchain/model/tx"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

type Block struct {
	Header BlockHeader
	Txs    []*tx.Tx

	hash    util.Hash
	Checked bool
}

func NewBlock() *Block {
	return &Block{}
}

func (bl *Block) GetHash() util.Hash {
	if bl.hash.IsNull() {
		bl.hash = bl.Header.GetHash()
	}
	return bl.hash
}

func (bl *Block) GetBlockHeader() BlockHeader {
	return bl.Header
}

func (bl *Block) SetNull() {
	bl.Header.SetNull()
	bl.Txs = nil
	bl.hash = util.HashZero
	bl.Checked = false
}

func (bl *Block) EncodeSize() uint32 {
	size := bl.Header.EncodeSize()
	size += util.VarIntSerializeSize(uint64(len(bl.Txs)))
	for _, transaction := range bl.Txs {
		size += transaction.EncodeSize()
	}
	return size
}

func (bl *Block) Encode(writer io.Writer) error {
	if err := bl.Header.Serialize(writer); err != nil {
		return err
	}
	if err := util.WriteVarInt(writer, uint64(len(bl.Txs))); err != nil {
		return err
	}
	for _, transaction := range bl.Txs {
		if err := transaction.Encode(writer); err != nil {
			return err
		}
	}
	return nil
}

func (bl *Block) Decode(reader io.Reader) error {
	if err := bl.Header.Unserialize(reader); err != nil {
		return err
	}
	txCount, err := util.ReadVarInt(reader)
	if err != nil {
		return err
	}
	bl.Txs = make([]*tx.Tx, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		transaction := tx.NewEmptyTx()
		if err := transaction.Decode(reader); err != nil {
			return err
		}
		bl.Txs = append(bl.Txs, transaction)
	}
	return nil
}

func (bl *Block) SerializeToBytes() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, bl.EncodeSize()))
	if err := bl.Encode(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
