package lchain

import (
	"sort"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/model/block"
	"github.com/dario-ramos/bitprim-blockchain/model/consensus"
	"github.com/dario-ramos/bitprim-blockchain/model/outpoint"
	"github.com/dario-ramos/bitprim-blockchain/model/tx"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

const headerCacheSize = 2048

// ChainStore is the persistent chain consumed by the view: block bodies and
// headers by height, a transaction index, and tip maintenance.
type ChainStore interface {
	GetBlockByHeight(height int32) (*block.Block, error)
	GetBlockByHash(hash *util.Hash) (*block.Block, error)
	GetHeader(height int32) (*block.BlockHeader, error)
	LastHeight() (int32, error)
	GetTransaction(hash *util.Hash) (*tx.Tx, int32, error)
	Push(bl *block.Block) (int32, error)
	Pop() (*block.Block, error)
}

// SpendIndex resolves an outpoint to the inpoint spending it on the
// committed chain.
type SpendIndex interface {
	Get(op *outpoint.OutPoint) *outpoint.InPoint
}

// ChainView composes the committed chain up to a fork index with an
// in-memory orphan branch that would extend it. Heights above the fork
// index resolve against the branch.
type ChainView struct {
	store       ChainStore
	spends      SpendIndex
	forkIndex   int32
	orphanChain []*block.Block
	orphanIndex int

	headerCache *lru.Cache
}

// NewChainView builds a view for validating orphanChain[orphanIndex], which
// sits at height forkIndex+orphanIndex+1.
func NewChainView(store ChainStore, spends SpendIndex, forkIndex int32,
	orphanChain []*block.Block, orphanIndex int) *ChainView {
	cache, _ := lru.New(headerCacheSize)
	return &ChainView{
		store:       store,
		spends:      spends,
		forkIndex:   forkIndex,
		orphanChain: orphanChain,
		orphanIndex: orphanIndex,
		headerCache: cache,
	}
}

// FetchHeader resolves the header at height from the branch or the store.
func (v *ChainView) FetchHeader(height int32) (*block.BlockHeader, error) {
	if height > v.forkIndex {
		fetchIndex := int(height - v.forkIndex - 1)
		if fetchIndex > v.orphanIndex || v.orphanIndex >= len(v.orphanChain) {
			return nil, errcode.New(errcode.ErrorNotFound)
		}
		header := v.orphanChain[fetchIndex].Header
		return &header, nil
	}

	if cached, ok := v.headerCache.Get(height); ok {
		return cached.(*block.BlockHeader), nil
	}
	header, err := v.store.GetHeader(height)
	if err != nil {
		return nil, err
	}
	v.headerCache.Add(height, header)
	return header, nil
}

// FetchTransaction resolves a transaction and its height, preferring the
// persistent index and falling back to the orphan branch. Persistent hits
// above the fork index belong to the branch being replaced and are ignored.
func (v *ChainView) FetchTransaction(hash *util.Hash) (*tx.Tx, int32, error) {
	transaction, height, err := v.store.GetTransaction(hash)
	if err == nil && height <= v.forkIndex {
		return transaction, height, nil
	}
	if err != nil && !errcode.IsErrorCode(err, errcode.ErrorNotFound) {
		return nil, 0, err
	}
	return v.fetchOrphanTransaction(hash)
}

func (v *ChainView) fetchOrphanTransaction(hash *util.Hash) (*tx.Tx, int32, error) {
	for orphan := 0; orphan <= v.orphanIndex; orphan++ {
		for _, orphanTx := range v.orphanChain[orphan].Txs {
			orphanHash := orphanTx.GetHash()
			if orphanHash.IsEqual(hash) {
				return orphanTx, v.forkIndex + int32(orphan) + 1, nil
			}
		}
	}
	return nil, 0, errcode.New(errcode.ErrorNotFound)
}

// TransactionExists reports whether the committed chain up to the fork
// index holds the transaction.
func (v *ChainView) TransactionExists(hash *util.Hash) (bool, error) {
	_, height, err := v.store.GetTransaction(hash)
	if errcode.IsErrorCode(err, errcode.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return height <= v.forkIndex, nil
}

// IsOutputSpentCommitted reports whether the committed chain up to the fork
// index spends the outpoint. The utxo index is authoritative; a record whose
// spender sits above the fork index belongs to the branch being replaced.
func (v *ChainView) IsOutputSpentCommitted(op *outpoint.OutPoint) (bool, error) {
	in := v.spends.Get(op)
	if in == nil {
		return false, nil
	}
	_, height, err := v.store.GetTransaction(&in.Hash)
	if errcode.IsErrorCode(err, errcode.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return height <= v.forkIndex, nil
}

// IsOutputSpent searches for a double spend in both the committed chain and
// the orphan branch, skipping the input at (orphanIndex, skipTx, skipInput).
func (v *ChainView) IsOutputSpent(op *outpoint.OutPoint, skipTx, skipInput int) (bool, error) {
	spent, err := v.IsOutputSpentCommitted(op)
	if err != nil {
		return false, err
	}
	if spent {
		return true, nil
	}
	return v.isOrphanSpent(op, skipTx, skipInput), nil
}

func (v *ChainView) isOrphanSpent(op *outpoint.OutPoint, skipTx, skipInput int) bool {
	for orphan := 0; orphan <= v.orphanIndex; orphan++ {
		transactions := v.orphanChain[orphan].Txs
		for txIndex, orphanTx := range transactions {
			for inputIndex, orphanInput := range orphanTx.GetIns() {
				if orphan == v.orphanIndex && txIndex == skipTx && inputIndex == skipInput {
					continue
				}
				if orphanInput.PreviousOutPoint.Hash.IsEqual(&op.Hash) &&
					orphanInput.PreviousOutPoint.Index == op.Index {
					return true
				}
			}
		}
	}
	return false
}

// MedianTimePast computes the median timestamp of the eleven headers below
// height, or all of them when fewer exist.
func (v *ChainView) MedianTimePast(height int32) (int64, error) {
	count := int32(consensus.MedianTimePastBlocks)
	if height < count {
		count = height
	}
	times := make([]int64, 0, count)
	for i := int32(0); i < count; i++ {
		header, err := v.FetchHeader(height - i - 1)
		if err != nil {
			return 0, err
		}
		times = append(times, int64(header.Time))
	}
	if len(times) == 0 {
		return 0, nil
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times[len(times)/2], nil
}

// PrecedingVersions samples the versions of up to maximum headers below
// height, most recent first. Versions clamp at 255; some historical blocks
// carry very high version words.
func (v *ChainView) PrecedingVersions(height int32, maximum int) ([]uint8, error) {
	size := maximum
	if int(height) < size {
		size = int(height)
	}
	result := make([]uint8, 0, size)
	for index := 0; index < size; index++ {
		header, err := v.FetchHeader(height - int32(index) - 1)
		if err != nil {
			return nil, err
		}
		version := header.Version
		if version < 0 || version > 255 {
			version = 255
		}
		result = append(result, uint8(version))
	}
	return result, nil
}
