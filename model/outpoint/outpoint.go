package outpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/dario-ramos/bitprim-blockchain/util"
)

// OutPoint identifies a transaction output.
type OutPoint struct {
	Hash  util.Hash
	Index uint32
}

func NewOutPoint(hash util.Hash, index uint32) *OutPoint {
	return &OutPoint{
		Hash:  hash,
		Index: index,
	}
}

func (outPoint *OutPoint) EncodeSize() uint32 {
	return outPoint.Hash.EncodeSize() + 4
}

func (outPoint *OutPoint) Encode(writer io.Writer) error {
	if err := outPoint.Hash.Serialize(writer); err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], outPoint.Index)
	_, err := writer.Write(buf[:])
	return err
}

func (outPoint *OutPoint) Decode(reader io.Reader) (err error) {
	if err = outPoint.Hash.Unserialize(reader); err != nil {
		return
	}
	var buf [4]byte
	if _, err = io.ReadFull(reader, buf[:]); err != nil {
		return
	}
	outPoint.Index = binary.LittleEndian.Uint32(buf[:])
	return
}

func (outPoint *OutPoint) String() string {
	return fmt.Sprintf("OutPoint (hash:%s index: %d)", outPoint.Hash.String(), outPoint.Index)
}

func (outPoint *OutPoint) IsNull() bool {
	if outPoint == nil {
		return true
	}
	if outPoint.Index != math.MaxUint32 {
		return false
	}
	return outPoint.Hash.IsEqual(&util.HashZero)
}
