package outpoint

import (
	"fmt"

	"github.com/dario-ramos/bitprim-blockchain/util"
)

// InPoint identifies a transaction input, the spending side of an OutPoint.
type InPoint struct {
	Hash  util.Hash
	Index uint32
}

func NewInPoint(hash util.Hash, index uint32) *InPoint {
	return &InPoint{
		Hash:  hash,
		Index: index,
	}
}

func (inPoint *InPoint) String() string {
	return fmt.Sprintf("InPoint (hash:%s index: %d)", inPoint.Hash.String(), inPoint.Index)
}
