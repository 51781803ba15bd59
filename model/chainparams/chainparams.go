package chainparams

import (
	"math/big"

	"github.com/google/btree"

	"github.com/dario-ramos/bitprim-blockchain/util"
)

// Checkpoint pins a block hash at a height. The list is externally supplied
// and ordered by height.
type Checkpoint struct {
	Height int32
	Hash   *util.Hash
}

func (c *Checkpoint) Less(than btree.Item) bool {
	return c.Height < than.(*Checkpoint).Height
}

type BitcoinParams struct {
	Name string

	// PowLimit is the highest admissible proof-of-work target.
	PowLimit    *big.Int
	MaxWorkBits uint32

	TargetTimespan     int64
	TargetTimePerBlock int64

	SubsidyHalvingInterval int32

	// Testnet allows min-difficulty blocks after a 2*spacing gap.
	AllowMinDifficultyBlocks bool

	// Soft fork supermajority thresholds over the version sample.
	SoftForkSample    int
	SoftForkEnforced  int
	SoftForkActivated int

	Bip16ActivationHeight int32

	// Heights exempted from the bip30 duplicate-transaction rule.
	Bip30ExceptionHeights []int32

	checkpoints *btree.BTree
}

func (bp *BitcoinParams) DifficultyAdjustmentInterval() int64 {
	return bp.TargetTimespan / bp.TargetTimePerBlock
}

func (bp *BitcoinParams) IsBip30Exception(height int32) bool {
	for _, h := range bp.Bip30ExceptionHeights {
		if h == height {
			return true
		}
	}
	return false
}

// AddCheckpoint registers an externally supplied checkpoint.
func (bp *BitcoinParams) AddCheckpoint(height int32, hash *util.Hash) {
	if bp.checkpoints == nil {
		bp.checkpoints = btree.New(2)
	}
	bp.checkpoints.ReplaceOrInsert(&Checkpoint{Height: height, Hash: hash})
}

// Checkpoint returns the checkpoint at the exact height, or nil.
func (bp *BitcoinParams) Checkpoint(height int32) *Checkpoint {
	if bp.checkpoints == nil {
		return nil
	}
	item := bp.checkpoints.Get(&Checkpoint{Height: height})
	if item == nil {
		return nil
	}
	return item.(*Checkpoint)
}

// ValidateCheckpoint returns false when a checkpoint exists at the height
// and its hash differs from the block hash.
func (bp *BitcoinParams) ValidateCheckpoint(blockHash *util.Hash, height int32) bool {
	checkpoint := bp.Checkpoint(height)
	if checkpoint == nil {
		return true
	}
	return checkpoint.Hash.IsEqual(blockHash)
}

// LastCheckpointHeight returns the height of the highest checkpoint, zero
// when there are none.
func (bp *BitcoinParams) LastCheckpointHeight() int32 {
	if bp.checkpoints == nil || bp.checkpoints.Len() == 0 {
		return 0
	}
	return bp.checkpoints.Max().(*Checkpoint).Height
}

var mainPowLimit = mustParseTarget("00000000ffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

func mustParseTarget(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("bad pow limit constant")
	}
	return v
}

var MainNetParams = BitcoinParams{
	Name:                     "mainnet",
	PowLimit:                 mainPowLimit,
	MaxWorkBits:              0x1d00ffff,
	TargetTimespan:           14 * 24 * 60 * 60,
	TargetTimePerBlock:       10 * 60,
	SubsidyHalvingInterval:   210000,
	AllowMinDifficultyBlocks: false,
	SoftForkSample:           1000,
	SoftForkEnforced:         950,
	SoftForkActivated:        750,
	Bip16ActivationHeight:    173805,
	Bip30ExceptionHeights:    []int32{91842, 91880},
}

var TestNet3Params = BitcoinParams{
	Name:                     "testnet3",
	PowLimit:                 mainPowLimit,
	MaxWorkBits:              0x1d00ffff,
	TargetTimespan:           14 * 24 * 60 * 60,
	TargetTimePerBlock:       10 * 60,
	SubsidyHalvingInterval:   210000,
	AllowMinDifficultyBlocks: true,
	SoftForkSample:           100,
	SoftForkEnforced:         75,
	SoftForkActivated:        51,
	Bip16ActivationHeight:    514,
	Bip30ExceptionHeights:    nil,
}

var ActiveNetParams = &MainNetParams
