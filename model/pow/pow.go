package pow

import (
	"math/big"

	"github.com/dario-ramos/bitprim-blockchain/model/block"
	"github.com/dario-ramos/bitprim-blockchain/model/chainparams"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

// HeaderFetcher resolves a block header at a height on the chain prefix
// being validated against.
type HeaderFetcher interface {
	FetchHeader(height int32) (*block.BlockHeader, error)
}

type Pow struct{}

// GetNextWorkRequired computes the bits a header at the given height must
// carry. candidateTime is the candidate header's timestamp, used only by the
// testnet min-difficulty rule.
func (pow *Pow) GetNextWorkRequired(height int32, candidateTime uint32, view HeaderFetcher,
	params *chainparams.BitcoinParams) (uint32, error) {
	if height == 0 {
		return params.MaxWorkBits, nil
	}

	interval := int32(params.DifficultyAdjustmentInterval())
	if height%interval != 0 {
		if params.AllowMinDifficultyBlocks {
			return pow.testNetWorkRequired(height, candidateTime, view, params)
		}
		prev, err := view.FetchHeader(height - 1)
		if err != nil {
			return 0, err
		}
		return prev.Bits, nil
	}

	// Retarget from the actual duration of the last interval.
	last, err := view.FetchHeader(height - 1)
	if err != nil {
		return 0, err
	}
	first, err := view.FetchHeader(height - interval)
	if err != nil {
		return 0, err
	}
	return pow.calculateNextWorkRequired(last.Bits,
		int64(last.Time)-int64(first.Time), params), nil
}

// testNetWorkRequired implements the testnet special rules: a block gap of
// more than twice the target spacing admits a minimum-difficulty block,
// otherwise the bits of the most recent non-special ancestor apply.
func (pow *Pow) testNetWorkRequired(height int32, candidateTime uint32, view HeaderFetcher,
	params *chainparams.BitcoinParams) (uint32, error) {
	prev, err := view.FetchHeader(height - 1)
	if err != nil {
		return 0, err
	}
	maxTimeGap := int64(prev.Time) + 2*params.TargetTimePerBlock
	if int64(candidateTime) > maxTimeGap {
		return params.MaxWorkBits, nil
	}

	interval := int32(params.DifficultyAdjustmentInterval())
	bits := params.MaxWorkBits
	for previousHeight := height; ; {
		if previousHeight%interval == 0 {
			break
		}
		previousHeight--
		header, err := view.FetchHeader(previousHeight)
		if err != nil {
			return 0, err
		}
		bits = header.Bits
		if header.Bits != params.MaxWorkBits {
			break
		}
	}
	return bits, nil
}

func (pow *Pow) calculateNextWorkRequired(prevBits uint32, actualTimespan int64,
	params *chainparams.BitcoinParams) uint32 {
	// Limit adjustment step.
	if actualTimespan < params.TargetTimespan/4 {
		actualTimespan = params.TargetTimespan / 4
	}
	if actualTimespan > params.TargetTimespan*4 {
		actualTimespan = params.TargetTimespan * 4
	}

	// Retarget.
	bnNew := CompactToBig(prevBits)
	bnNew.Mul(bnNew, big.NewInt(actualTimespan))
	bnNew.Div(bnNew, big.NewInt(params.TargetTimespan))
	if bnNew.Cmp(params.PowLimit) > 0 {
		bnNew = params.PowLimit
	}
	return BigToCompact(bnNew)
}

// CheckProofOfWork verifies the header hash satisfies the target encoded in
// bits and the target lies in (0, PowLimit].
func (pow *Pow) CheckProofOfWork(hash *util.Hash, bits uint32, params *chainparams.BitcoinParams) bool {
	target := CompactToBig(bits)
	if target.Sign() <= 0 || target.Cmp(params.PowLimit) > 0 ||
		HashToBig(hash).Cmp(target) > 0 {
		return false
	}
	return true
}
