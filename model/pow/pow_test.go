package pow

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/model/block"
	"github.com/dario-ramos/bitprim-blockchain/model/chainparams"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

type stubHeaders struct {
	headers map[int32]*block.BlockHeader
}

func (s *stubHeaders) FetchHeader(height int32) (*block.BlockHeader, error) {
	header, ok := s.headers[height]
	if !ok {
		return nil, errcode.New(errcode.ErrorNotFound)
	}
	return header, nil
}

func TestCompactRoundTrip(t *testing.T) {
	for _, compact := range []uint32{0x1d00ffff, 0x1b0404cb, 0x207fffff, 0x1c05a3f4} {
		n := CompactToBig(compact)
		assert.Equal(t, compact, BigToCompact(n), "compact %08x", compact)
	}
}

func TestCompactToBigNegative(t *testing.T) {
	n := CompactToBig(0x1d80ffff)
	assert.True(t, n.Sign() < 0)
}

func TestBigToCompactZero(t *testing.T) {
	assert.Equal(t, uint32(0), BigToCompact(big.NewInt(0)))
}

func TestWorkRequiredGenesis(t *testing.T) {
	var checker Pow
	bits, err := checker.GetNextWorkRequired(0, 0, &stubHeaders{}, &chainparams.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, chainparams.MainNetParams.MaxWorkBits, bits)
}

func TestWorkRequiredOffBoundary(t *testing.T) {
	headers := &stubHeaders{headers: map[int32]*block.BlockHeader{
		99: {Bits: 0x1b0404cb},
	}}
	var checker Pow
	bits, err := checker.GetNextWorkRequired(100, 0, headers, &chainparams.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1b0404cb), bits)
}

// At a retarget boundary with an interval that took half the target
// timespan, the new target halves.
func TestWorkRequiredRetargetHalving(t *testing.T) {
	params := &chainparams.MainNetParams
	prevBits := uint32(0x1c0ffff0)

	firstTime := uint32(1000000000)
	lastTime := firstTime + uint32(params.TargetTimespan/2)

	headers := &stubHeaders{headers: map[int32]*block.BlockHeader{
		0:    {Time: firstTime, Bits: prevBits},
		2015: {Time: lastTime, Bits: prevBits},
	}}

	var checker Pow
	bits, err := checker.GetNextWorkRequired(2016, lastTime, headers, params)
	require.NoError(t, err)

	expected := CompactToBig(prevBits)
	expected.Div(expected, big.NewInt(2))
	assert.Equal(t, BigToCompact(expected), bits)
	assert.True(t, CompactToBig(bits).Cmp(CompactToBig(prevBits)) < 0)
}

// The adjustment clamps to a quarter of the target timespan.
func TestWorkRequiredRetargetClamped(t *testing.T) {
	params := &chainparams.MainNetParams
	prevBits := uint32(0x1c0ffff0)

	firstTime := uint32(1000000000)
	lastTime := firstTime + 60 // absurdly fast interval

	headers := &stubHeaders{headers: map[int32]*block.BlockHeader{
		0:    {Time: firstTime, Bits: prevBits},
		2015: {Time: lastTime, Bits: prevBits},
	}}

	var checker Pow
	bits, err := checker.GetNextWorkRequired(2016, lastTime, headers, params)
	require.NoError(t, err)

	expected := CompactToBig(prevBits)
	expected.Div(expected, big.NewInt(4))
	assert.Equal(t, BigToCompact(expected), bits)
}

// The retarget never exceeds the proof-of-work limit.
func TestWorkRequiredRetargetCapped(t *testing.T) {
	params := &chainparams.MainNetParams
	prevBits := params.MaxWorkBits

	firstTime := uint32(1000000000)
	lastTime := firstTime + uint32(params.TargetTimespan*8)

	headers := &stubHeaders{headers: map[int32]*block.BlockHeader{
		0:    {Time: firstTime, Bits: prevBits},
		2015: {Time: lastTime, Bits: prevBits},
	}}

	var checker Pow
	bits, err := checker.GetNextWorkRequired(2016, lastTime, headers, params)
	require.NoError(t, err)
	assert.Equal(t, params.MaxWorkBits, bits)
}

func TestWorkRequiredTestNetMinDifficulty(t *testing.T) {
	params := &chainparams.TestNet3Params
	prevTime := uint32(1000000000)
	headers := &stubHeaders{headers: map[int32]*block.BlockHeader{
		49: {Time: prevTime, Bits: 0x1b0404cb},
	}}

	var checker Pow

	// A gap beyond twice the spacing admits a min-difficulty block.
	bits, err := checker.GetNextWorkRequired(50, prevTime+1201, headers, params)
	require.NoError(t, err)
	assert.Equal(t, params.MaxWorkBits, bits)

	// Otherwise the last non-special ancestor's bits apply.
	bits, err = checker.GetNextWorkRequired(50, prevTime+600, headers, params)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1b0404cb), bits)
}

func TestWorkRequiredTestNetLastNonSpecialScan(t *testing.T) {
	params := &chainparams.TestNet3Params
	prevTime := uint32(1000000000)
	headers := &stubHeaders{headers: map[int32]*block.BlockHeader{
		52: {Time: prevTime, Bits: params.MaxWorkBits},
		51: {Time: prevTime - 600, Bits: params.MaxWorkBits},
		50: {Time: prevTime - 1200, Bits: 0x1b0404cb},
	}}

	var checker Pow
	bits, err := checker.GetNextWorkRequired(53, prevTime+600, headers, params)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1b0404cb), bits)
}

func TestCheckProofOfWork(t *testing.T) {
	params := &chainparams.MainNetParams
	var checker Pow

	// An all-zero hash satisfies any sane target.
	var easy util.Hash
	assert.True(t, checker.CheckProofOfWork(&easy, params.MaxWorkBits, params))

	// A hash above the target fails.
	var hard util.Hash
	for i := range hard {
		hard[i] = 0xff
	}
	assert.False(t, checker.CheckProofOfWork(&hard, params.MaxWorkBits, params))

	// A target above the limit fails outright.
	assert.False(t, checker.CheckProofOfWork(&easy, 0x207fffff, params))

	// A zero target fails outright.
	assert.False(t, checker.CheckProofOfWork(&easy, 0, params))
}
