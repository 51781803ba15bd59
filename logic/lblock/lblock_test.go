package lblock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/logic/lchain"
	"github.com/dario-ramos/bitprim-blockchain/logic/merkleroot"
	"github.com/dario-ramos/bitprim-blockchain/model/block"
	"github.com/dario-ramos/bitprim-blockchain/model/chainparams"
	"github.com/dario-ramos/bitprim-blockchain/model/opcodes"
	"github.com/dario-ramos/bitprim-blockchain/model/outpoint"
	"github.com/dario-ramos/bitprim-blockchain/model/pow"
	"github.com/dario-ramos/bitprim-blockchain/model/script"
	"github.com/dario-ramos/bitprim-blockchain/model/tx"
	"github.com/dario-ramos/bitprim-blockchain/model/txin"
	"github.com/dario-ramos/bitprim-blockchain/model/txout"
	"github.com/dario-ramos/bitprim-blockchain/persist/chaindb"
	"github.com/dario-ramos/bitprim-blockchain/util"
	"github.com/dario-ramos/bitprim-blockchain/util/amount"
	"github.com/dario-ramos/bitprim-blockchain/utxo"
)

// easyParams admits trivially minable blocks so tests can satisfy the
// proof-of-work checks without real hashing effort.
func easyParams() *chainparams.BitcoinParams {
	return &chainparams.BitcoinParams{
		Name:                   "unittest",
		PowLimit:               pow.CompactToBig(0x207fffff),
		MaxWorkBits:            0x207fffff,
		TargetTimespan:         14 * 24 * 60 * 60,
		TargetTimePerBlock:     10 * 60,
		SubsidyHalvingInterval: 210000,
		SoftForkSample:         10,
		SoftForkEnforced:       8,
		SoftForkActivated:      5,
		Bip16ActivationHeight:  0,
	}
}

type acceptAllVerifier struct{}

func (acceptAllVerifier) Verify(*script.Script, *tx.Tx, int, uint32) bool { return true }

type rejectAllVerifier struct{}

func (rejectAllVerifier) Verify(*script.Script, *tx.Tx, int, uint32) bool { return false }

func heightPushScript(height int32, pad int) *script.Script {
	heightData := script.NewScriptNum(int64(height)).Serialize()
	raw := append([]byte{byte(len(heightData))}, heightData...)
	for i := 0; i < pad; i++ {
		raw = append(raw, opcodes.OP_0)
	}
	// Keep the coinbase script within its consensus minimum.
	for len(raw) < 2 {
		raw = append(raw, opcodes.OP_0)
	}
	return script.NewScriptRaw(raw)
}

func coinbaseAt(height int32, value amount.Amount, outScript *script.Script) *tx.Tx {
	transaction := tx.NewTx(0, 1)
	transaction.AddTxIn(txin.NewTxIn(nil, heightPushScript(height, 0), txin.SequenceFinal))
	if outScript == nil {
		outScript = script.NewScriptRaw([]byte{opcodes.OP_TRUE})
	}
	transaction.AddTxOut(txout.NewTxOut(value, outScript))
	return transaction
}

func spendTx(op *outpoint.OutPoint, value amount.Amount) *tx.Tx {
	transaction := tx.NewTx(0, 1)
	transaction.AddTxIn(txin.NewTxIn(op, script.NewScriptRaw([]byte{opcodes.OP_TRUE}), txin.SequenceFinal))
	transaction.AddTxOut(txout.NewTxOut(value, script.NewScriptRaw([]byte{opcodes.OP_TRUE})))
	return transaction
}

func buildBlock(height int32, version int32, txs []*tx.Tx) *block.Block {
	bl := block.NewBlock()
	bl.Header.Version = version
	bl.Header.Time = 1000000000 + uint32(height)*600
	bl.Header.Bits = 0x207fffff
	bl.Txs = txs
	bl.Header.MerkleRoot = merkleroot.BlockMerkleRoot(txs, nil)
	return bl
}

// solve grinds the nonce until the header satisfies its own bits. The easy
// target needs a couple of attempts at most.
func solve(bl *block.Block, params *chainparams.BitcoinParams) {
	var checker pow.Pow
	for {
		hash := bl.Header.GetHash()
		if checker.CheckProofOfWork(&hash, bl.Header.Bits, params) {
			return
		}
		bl.Header.Nonce++
	}
}

type chainFixture struct {
	params *chainparams.BitcoinParams
	store  *chaindb.ChainDb
	spends *utxo.UtxoIndex
	blocks []*block.Block
}

// buildChain commits `length` coinbase-only blocks. cbScript overrides the
// output script of the genesis coinbase.
func buildChain(t *testing.T, params *chainparams.BitcoinParams, length int32,
	version int32, cbScript *script.Script) *chainFixture {
	t.Helper()
	store, err := chaindb.NewChainDb(t.TempDir(), 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	spends, err := utxo.NewUtxoIndex(filepath.Join(t.TempDir(), "utxo.db"), 0)
	require.NoError(t, err)
	require.NoError(t, spends.Create(256))
	t.Cleanup(func() { spends.Close() })

	fixture := &chainFixture{params: params, store: store, spends: spends}
	for height := int32(0); height < length; height++ {
		outScript := (*script.Script)(nil)
		if height == 0 {
			outScript = cbScript
		}
		bl := buildBlock(height, version, []*tx.Tx{coinbaseAt(height, 50*amount.COIN, outScript)})
		fixture.blocks = append(fixture.blocks, bl)
		_, err := store.Push(bl)
		require.NoError(t, err)
	}
	return fixture
}

func (f *chainFixture) validator(t *testing.T, branch []*block.Block, orphanIndex int,
	verifier ScriptVerifier, stopped StoppedCallback) *BlockValidator {
	t.Helper()
	forkIndex := int32(len(f.blocks)) - 1
	height := forkIndex + int32(orphanIndex) + 1
	view := lchain.NewChainView(f.store, f.spends, forkIndex, branch, orphanIndex)
	return NewBlockValidator(height, branch[orphanIndex], f.params, view, verifier, stopped)
}

func (f *chainFixture) contextValidator(t *testing.T, branch []*block.Block,
	orphanIndex int, verifier ScriptVerifier) *BlockValidator {
	t.Helper()
	validator := f.validator(t, branch, orphanIndex, verifier, nil)
	require.NoError(t, validator.InitializeContext())
	return validator
}

func assertErrCode(t *testing.T, err error, code errcode.ChainErr) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errcode.IsErrorCode(err, code), "got %v, want %v", err, code)
}

// --- phase A -------------------------------------------------------------

func TestCheckBlockEmptyTransactions(t *testing.T) {
	params := easyParams()
	bl := buildBlock(0, 1, nil)
	validator := NewBlockValidator(0, bl, params, nil, acceptAllVerifier{}, nil)
	assertErrCode(t, validator.CheckBlock(), errcode.ErrorSizeLimits)
}

func TestCheckBlockGenesisSuccess(t *testing.T) {
	params := easyParams()
	util.SetMockTime(1000000100)
	defer util.SetMockTime(0)

	bl := buildBlock(0, 1, []*tx.Tx{coinbaseAt(0, 50*amount.COIN, nil)})
	solve(bl, params)

	store, err := chaindb.NewChainDb(t.TempDir(), 1<<20)
	require.NoError(t, err)
	defer store.Close()
	spends, err := utxo.NewUtxoIndex(filepath.Join(t.TempDir(), "utxo.db"), 0)
	require.NoError(t, err)
	require.NoError(t, spends.Create(64))
	defer spends.Close()

	view := lchain.NewChainView(store, spends, -1, []*block.Block{bl}, 0)
	validator := NewBlockValidator(0, bl, params, view, acceptAllVerifier{}, nil)

	require.NoError(t, validator.CheckBlock())
	require.NoError(t, validator.InitializeContext())
	require.NoError(t, validator.AcceptBlock())
	require.NoError(t, validator.ConnectBlock())
}

func TestCheckBlockProofOfWork(t *testing.T) {
	// A mainnet target cannot be met by an unmined block.
	bl := buildBlock(0, 1, []*tx.Tx{coinbaseAt(0, 50*amount.COIN, nil)})
	bl.Header.Bits = chainparams.MainNetParams.MaxWorkBits
	validator := NewBlockValidator(0, bl, &chainparams.MainNetParams, nil, acceptAllVerifier{}, nil)
	assertErrCode(t, validator.CheckBlock(), errcode.ErrorProofOfWork)
}

func TestCheckBlockFuturisticTimestamp(t *testing.T) {
	params := easyParams()
	util.SetMockTime(1000000000)
	defer util.SetMockTime(0)

	bl := buildBlock(0, 1, []*tx.Tx{coinbaseAt(0, 50*amount.COIN, nil)})
	bl.Header.Time = 1000000000 + 3*60*60
	solve(bl, params)

	validator := NewBlockValidator(0, bl, params, nil, acceptAllVerifier{}, nil)
	assertErrCode(t, validator.CheckBlock(), errcode.ErrorFuturisticTimestamp)
}

func TestCheckBlockFirstNotCoinbase(t *testing.T) {
	params := easyParams()
	util.SetMockTime(1000000100)
	defer util.SetMockTime(0)

	regular := spendTx(outpoint.NewOutPoint(util.Sha256Hash([]byte{1}), 0), amount.COIN)
	bl := buildBlock(0, 1, []*tx.Tx{regular})
	solve(bl, params)

	validator := NewBlockValidator(0, bl, params, nil, acceptAllVerifier{}, nil)
	assertErrCode(t, validator.CheckBlock(), errcode.ErrorFirstNotCoinbase)
}

func TestCheckBlockExtraCoinbases(t *testing.T) {
	params := easyParams()
	util.SetMockTime(1000000100)
	defer util.SetMockTime(0)

	bl := buildBlock(0, 1, []*tx.Tx{
		coinbaseAt(0, 50*amount.COIN, nil),
		coinbaseAt(1, 50*amount.COIN, nil),
	})
	solve(bl, params)

	validator := NewBlockValidator(0, bl, params, nil, acceptAllVerifier{}, nil)
	assertErrCode(t, validator.CheckBlock(), errcode.ErrorExtraCoinbases)
}

func TestCheckBlockDuplicateTxs(t *testing.T) {
	params := easyParams()
	util.SetMockTime(1000000100)
	defer util.SetMockTime(0)

	duplicate := spendTx(outpoint.NewOutPoint(util.Sha256Hash([]byte{1}), 0), amount.COIN)
	other := spendTx(outpoint.NewOutPoint(util.Sha256Hash([]byte{1}), 0), amount.COIN)
	bl := buildBlock(0, 1, []*tx.Tx{coinbaseAt(0, 50*amount.COIN, nil), duplicate, other})
	solve(bl, params)

	validator := NewBlockValidator(0, bl, params, nil, acceptAllVerifier{}, nil)
	assertErrCode(t, validator.CheckBlock(), errcode.ErrorDuplicate)
}

func TestCheckBlockTooManySigs(t *testing.T) {
	params := easyParams()
	util.SetMockTime(1000000100)
	defer util.SetMockTime(0)

	sigScript := make([]byte, 20001)
	for i := range sigScript {
		sigScript[i] = opcodes.OP_CHECKSIG
	}
	heavy := spendTx(outpoint.NewOutPoint(util.Sha256Hash([]byte{1}), 0), amount.COIN)
	heavy.GetOuts()[0] = txout.NewTxOut(amount.COIN, script.NewScriptRaw(sigScript))
	bl := buildBlock(0, 1, []*tx.Tx{coinbaseAt(0, 50*amount.COIN, nil), heavy})
	solve(bl, params)

	validator := NewBlockValidator(0, bl, params, nil, acceptAllVerifier{}, nil)
	assertErrCode(t, validator.CheckBlock(), errcode.ErrorTooManySigs)
}

func TestCheckBlockMerkleMismatch(t *testing.T) {
	params := easyParams()
	util.SetMockTime(1000000100)
	defer util.SetMockTime(0)

	bl := buildBlock(0, 1, []*tx.Tx{coinbaseAt(0, 50*amount.COIN, nil)})
	bl.Header.MerkleRoot[0] ^= 0xff
	solve(bl, params)

	validator := NewBlockValidator(0, bl, params, nil, acceptAllVerifier{}, nil)
	assertErrCode(t, validator.CheckBlock(), errcode.ErrorMerkleMismatch)
}

func TestCheckBlockServiceStopped(t *testing.T) {
	params := easyParams()
	util.SetMockTime(1000000100)
	defer util.SetMockTime(0)

	bl := buildBlock(0, 1, []*tx.Tx{coinbaseAt(0, 50*amount.COIN, nil)})
	solve(bl, params)

	validator := NewBlockValidator(0, bl, params, nil, acceptAllVerifier{},
		func() bool { return true })
	assertErrCode(t, validator.CheckBlock(), errcode.ErrorServiceStopped)
}

// CheckBlock is deterministic: repeated runs return the same verdict.
func TestCheckBlockDeterministic(t *testing.T) {
	params := easyParams()
	util.SetMockTime(1000000100)
	defer util.SetMockTime(0)

	bl := buildBlock(0, 1, []*tx.Tx{coinbaseAt(0, 50*amount.COIN, nil)})
	bl.Header.MerkleRoot[0] ^= 0xff
	solve(bl, params)

	for i := 0; i < 3; i++ {
		validator := NewBlockValidator(0, bl, params, nil, acceptAllVerifier{}, nil)
		assertErrCode(t, validator.CheckBlock(), errcode.ErrorMerkleMismatch)
	}
}

// --- phase B -------------------------------------------------------------

func TestAcceptBlockIncorrectProofOfWork(t *testing.T) {
	fixture := buildChain(t, easyParams(), 12, 1, nil)
	candidate := buildBlock(12, 1, []*tx.Tx{coinbaseAt(12, 50*amount.COIN, nil)})
	candidate.Header.Bits = 0x1f0fffff

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assertErrCode(t, validator.AcceptBlock(), errcode.ErrorIncorrectProofOfWork)
}

func TestAcceptBlockTimestampTooEarly(t *testing.T) {
	fixture := buildChain(t, easyParams(), 12, 1, nil)
	candidate := buildBlock(12, 1, []*tx.Tx{coinbaseAt(12, 50*amount.COIN, nil)})
	candidate.Header.Time = 1000000000 // at or below the median of the last 11

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assertErrCode(t, validator.AcceptBlock(), errcode.ErrorTimestampTooEarly)
}

func TestAcceptBlockNonFinalTransaction(t *testing.T) {
	fixture := buildChain(t, easyParams(), 12, 1, nil)

	nonFinal := spendTx(outpoint.NewOutPoint(fixture.blocks[0].Txs[0].GetHash(), 0), amount.COIN)
	locked := tx.NewTx(100, 1)
	locked.AddTxIn(txin.NewTxIn(nonFinal.GetIns()[0].PreviousOutPoint,
		script.NewScriptRaw([]byte{opcodes.OP_TRUE}), 0))
	locked.AddTxOut(txout.NewTxOut(amount.COIN, script.NewScriptRaw([]byte{opcodes.OP_TRUE})))

	candidate := buildBlock(12, 1, []*tx.Tx{coinbaseAt(12, 50*amount.COIN, nil), locked})
	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assertErrCode(t, validator.AcceptBlock(), errcode.ErrorNonFinalTransaction)
}

func TestAcceptBlockCheckpointsFailed(t *testing.T) {
	params := easyParams()
	wrong := util.Sha256Hash([]byte("not the block"))
	params.AddCheckpoint(12, &wrong)

	fixture := buildChain(t, params, 12, 1, nil)
	candidate := buildBlock(12, 1, []*tx.Tx{coinbaseAt(12, 50*amount.COIN, nil)})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assertErrCode(t, validator.AcceptBlock(), errcode.ErrorCheckpointsFailed)
}

func TestAcceptBlockCheckpointMatch(t *testing.T) {
	params := easyParams()
	fixture := buildChain(t, params, 12, 1, nil)
	candidate := buildBlock(12, 1, []*tx.Tx{coinbaseAt(12, 50*amount.COIN, nil)})
	candidateHash := candidate.GetHash()
	params.AddCheckpoint(12, &candidateHash)

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	require.NoError(t, validator.AcceptBlock())
}

func TestAcceptBlockOldVersion(t *testing.T) {
	// Ten version-4 predecessors enforce version 4.
	fixture := buildChain(t, easyParams(), 12, 4, nil)
	candidate := buildBlock(12, 1, []*tx.Tx{coinbaseAt(12, 50*amount.COIN, nil)})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assert.Equal(t, int32(4), validator.MinimumVersion())
	assertErrCode(t, validator.AcceptBlock(), errcode.ErrorOldVersionBlock)
}

func TestAcceptBlockCoinbaseHeightMismatch(t *testing.T) {
	// Version-2 supermajority activates bip34.
	fixture := buildChain(t, easyParams(), 12, 2, nil)

	wrongHeight := tx.NewTx(0, 1)
	wrongHeight.AddTxIn(txin.NewTxIn(nil, heightPushScript(11, 0), txin.SequenceFinal))
	wrongHeight.AddTxOut(txout.NewTxOut(50*amount.COIN, script.NewScriptRaw([]byte{opcodes.OP_TRUE})))

	candidate := buildBlock(12, 2, []*tx.Tx{wrongHeight})
	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assert.True(t, validator.IsActive(ActiveBip34))
	assertErrCode(t, validator.AcceptBlock(), errcode.ErrorCoinbaseHeightMismatch)
}

func TestAcceptBlockCoinbaseHeightMatch(t *testing.T) {
	fixture := buildChain(t, easyParams(), 12, 2, nil)
	candidate := buildBlock(12, 2, []*tx.Tx{coinbaseAt(12, 50*amount.COIN, nil)})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	require.NoError(t, validator.AcceptBlock())
}

// bip34 stays dormant while the block itself carries an old version: an
// activated (but not yet enforced) supermajority leaves version-1 blocks
// free of the coinbase height rule.
func TestBip34RequiresBlockVersion(t *testing.T) {
	params := easyParams()
	fixture := buildChain(t, params, 6, 1, nil)

	// Six more version-2 blocks: the ten-block sample counts 6, which
	// activates bip34 without enforcing version 2.
	for height := int32(6); height < 12; height++ {
		bl := buildBlock(height, 2, []*tx.Tx{coinbaseAt(height, 50*amount.COIN, nil)})
		fixture.blocks = append(fixture.blocks, bl)
		_, err := fixture.store.Push(bl)
		require.NoError(t, err)
	}

	wrongHeight := tx.NewTx(0, 1)
	wrongHeight.AddTxIn(txin.NewTxIn(nil, heightPushScript(11, 0), txin.SequenceFinal))
	wrongHeight.AddTxOut(txout.NewTxOut(50*amount.COIN, script.NewScriptRaw([]byte{opcodes.OP_TRUE})))

	candidate := buildBlock(12, 1, []*tx.Tx{wrongHeight})
	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assert.False(t, validator.IsActive(ActiveBip34))
	assert.Equal(t, int32(1), validator.MinimumVersion())
	require.NoError(t, validator.AcceptBlock())
}

// --- phase C -------------------------------------------------------------

func TestConnectBlockSpendSuccess(t *testing.T) {
	fixture := buildChain(t, easyParams(), 101, 1, nil)

	spent := outpoint.NewOutPoint(fixture.blocks[0].Txs[0].GetHash(), 0)
	spend := spendTx(spent, 49*amount.COIN) // 1 coin fee
	candidate := buildBlock(101, 1, []*tx.Tx{
		coinbaseAt(101, 51*amount.COIN, nil), // subsidy + fee
		spend,
	})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	require.NoError(t, validator.ConnectBlock())
}

func TestConnectBlockCoinbaseTooLarge(t *testing.T) {
	fixture := buildChain(t, easyParams(), 101, 1, nil)

	spent := outpoint.NewOutPoint(fixture.blocks[0].Txs[0].GetHash(), 0)
	spend := spendTx(spent, 49*amount.COIN)
	candidate := buildBlock(101, 1, []*tx.Tx{
		coinbaseAt(101, 51*amount.COIN+1, nil),
		spend,
	})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assertErrCode(t, validator.ConnectBlock(), errcode.ErrorCoinbaseTooLarge)
}

func TestConnectBlockFeesOutOfRange(t *testing.T) {
	fixture := buildChain(t, easyParams(), 101, 1, nil)

	spent := outpoint.NewOutPoint(fixture.blocks[0].Txs[0].GetHash(), 0)
	spend := spendTx(spent, 51*amount.COIN) // outputs exceed the input value
	candidate := buildBlock(101, 1, []*tx.Tx{coinbaseAt(101, 50*amount.COIN, nil), spend})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assertErrCode(t, validator.ConnectBlock(), errcode.ErrorFeesOutOfRange)
}

func TestConnectBlockImmatureCoinbaseSpend(t *testing.T) {
	fixture := buildChain(t, easyParams(), 50, 1, nil)

	spent := outpoint.NewOutPoint(fixture.blocks[0].Txs[0].GetHash(), 0)
	spend := spendTx(spent, 49*amount.COIN)
	candidate := buildBlock(50, 1, []*tx.Tx{coinbaseAt(50, 51*amount.COIN, nil), spend})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assertErrCode(t, validator.ConnectBlock(), errcode.ErrorValidateInputsFailed)
}

func TestConnectBlockMissingPreviousTx(t *testing.T) {
	fixture := buildChain(t, easyParams(), 101, 1, nil)

	spend := spendTx(outpoint.NewOutPoint(util.Sha256Hash([]byte("nowhere")), 0), amount.COIN)
	candidate := buildBlock(101, 1, []*tx.Tx{coinbaseAt(101, 50*amount.COIN, nil), spend})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assertErrCode(t, validator.ConnectBlock(), errcode.ErrorValidateInputsFailed)
}

func TestConnectBlockScriptVerifyFailure(t *testing.T) {
	fixture := buildChain(t, easyParams(), 101, 1, nil)

	spent := outpoint.NewOutPoint(fixture.blocks[0].Txs[0].GetHash(), 0)
	spend := spendTx(spent, 49*amount.COIN)
	candidate := buildBlock(101, 1, []*tx.Tx{coinbaseAt(101, 51*amount.COIN, nil), spend})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, rejectAllVerifier{})
	assertErrCode(t, validator.ConnectBlock(), errcode.ErrorValidateInputsFailed)
}

// An outpoint unspent on the committed chain but spent earlier in the same
// orphan branch is a double spend.
func TestConnectBlockDoubleSpendAcrossOrphanBranch(t *testing.T) {
	fixture := buildChain(t, easyParams(), 101, 1, nil)

	spent := outpoint.NewOutPoint(fixture.blocks[0].Txs[0].GetHash(), 0)
	first := buildBlock(101, 1, []*tx.Tx{
		coinbaseAt(101, 51*amount.COIN, nil),
		spendTx(spent, 49*amount.COIN),
	})
	second := buildBlock(102, 1, []*tx.Tx{
		coinbaseAt(102, 51*amount.COIN, nil),
		spendTx(spent, 48*amount.COIN),
	})

	branch := []*block.Block{first, second}

	// The first branch block validates cleanly.
	validator := fixture.contextValidator(t, branch[:1], 0, acceptAllVerifier{})
	require.NoError(t, validator.ConnectBlock())

	// The second one re-spends the same outpoint.
	validator = fixture.contextValidator(t, branch, 1, acceptAllVerifier{})
	assertErrCode(t, validator.ConnectBlock(), errcode.ErrorValidateInputsFailed)
}

// A committed spend recorded in the utxo index blocks a re-spend.
func TestConnectBlockDoubleSpendCommitted(t *testing.T) {
	fixture := buildChain(t, easyParams(), 101, 1, nil)

	spent := outpoint.NewOutPoint(fixture.blocks[0].Txs[0].GetHash(), 0)
	spenderHash := fixture.blocks[100].Txs[0].GetHash()
	require.NoError(t, fixture.spends.Store(spent, outpoint.NewInPoint(spenderHash, 0)))

	spend := spendTx(spent, 49*amount.COIN)
	candidate := buildBlock(101, 1, []*tx.Tx{coinbaseAt(101, 51*amount.COIN, nil), spend})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assertErrCode(t, validator.ConnectBlock(), errcode.ErrorValidateInputsFailed)
}

// A block passing the legacy sigop count in phase A can still exceed the
// cap once P2SH redeem scripts are counted accurately.
func TestConnectBlockP2SHSigOpOverflow(t *testing.T) {
	p2sh := make([]byte, 23)
	p2sh[0] = opcodes.OP_HASH160
	p2sh[1] = 0x14
	p2sh[22] = opcodes.OP_EQUAL

	fixture := buildChain(t, easyParams(), 101, 1, script.NewScriptRaw(p2sh))

	// Redeem script with 1001 multisigs: accurate count 20020.
	redeem := make([]byte, 1001)
	for i := range redeem {
		redeem[i] = opcodes.OP_CHECKMULTISIG
	}
	sigScript := make([]byte, 0, len(redeem)+3)
	sigScript = append(sigScript, opcodes.OP_PUSHDATA2, byte(len(redeem)), byte(len(redeem)>>8))
	sigScript = append(sigScript, redeem...)

	spent := outpoint.NewOutPoint(fixture.blocks[0].Txs[0].GetHash(), 0)
	spend := tx.NewTx(0, 1)
	spend.AddTxIn(txin.NewTxIn(spent, script.NewScriptRaw(sigScript), txin.SequenceFinal))
	spend.AddTxOut(txout.NewTxOut(49*amount.COIN, script.NewScriptRaw([]byte{opcodes.OP_TRUE})))

	candidate := buildBlock(101, 1, []*tx.Tx{coinbaseAt(101, 51*amount.COIN, nil), spend})

	// Phase A is happy: push-only input scripts carry no legacy sigops.
	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assert.Less(t, spend.GetSigOpCountWithoutP2SH(), 20000)

	assertErrCode(t, validator.ConnectBlock(), errcode.ErrorTooManySigs)
}

// A duplicate of an existing transaction whose outputs are all spent is
// rejected under bip30.
func TestConnectBlockBip30Duplicate(t *testing.T) {
	fixture := buildChain(t, easyParams(), 101, 1, nil)

	duplicate := fixture.blocks[5].Txs[0]
	spenderHash := fixture.blocks[100].Txs[0].GetHash()
	require.NoError(t, fixture.spends.Store(
		outpoint.NewOutPoint(duplicate.GetHash(), 0), outpoint.NewInPoint(spenderHash, 0)))
	candidate := buildBlock(101, 1, []*tx.Tx{duplicate})

	validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
	assertErrCode(t, validator.ConnectBlock(), errcode.ErrorDuplicateOrSpent)
}

func TestConnectBlockServiceStopped(t *testing.T) {
	fixture := buildChain(t, easyParams(), 101, 1, nil)
	candidate := buildBlock(101, 1, []*tx.Tx{coinbaseAt(101, 50*amount.COIN, nil)})

	validator := fixture.validator(t, []*block.Block{candidate}, 0, acceptAllVerifier{},
		func() bool { return true })
	require.NoError(t, validator.InitializeContext())
	assertErrCode(t, validator.ConnectBlock(), errcode.ErrorServiceStopped)
}

// --- shared --------------------------------------------------------------

func TestBlockSubsidy(t *testing.T) {
	params := &chainparams.MainNetParams
	assert.Equal(t, 50*amount.COIN, BlockSubsidy(0, params))
	assert.Equal(t, 50*amount.COIN, BlockSubsidy(209999, params))
	assert.Equal(t, 25*amount.COIN, BlockSubsidy(210000, params))
	assert.Equal(t, 50*amount.COIN/4, BlockSubsidy(420000, params))
	assert.Equal(t, amount.Amount(0), BlockSubsidy(64*210000, params))
}

// Soft fork activation is monotone: extending the sampled prefix with more
// upgraded blocks never deactivates a fork.
func TestActivationMonotonicity(t *testing.T) {
	params := easyParams()

	for length := int32(5); length <= 12; length++ {
		fixture := buildChain(t, params, length, 2, nil)
		candidate := buildBlock(length, 2, []*tx.Tx{coinbaseAt(length, 50*amount.COIN, nil)})
		validator := fixture.contextValidator(t, []*block.Block{candidate}, 0, acceptAllVerifier{})
		if length >= int32(params.SoftForkActivated) {
			assert.True(t, validator.IsActive(ActiveBip34), "length %d", length)
		}
	}
}
