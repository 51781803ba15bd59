package lblock

import (
	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/logic/lchain"
	"github.com/dario-ramos/bitprim-blockchain/model/block"
	"github.com/dario-ramos/bitprim-blockchain/model/chainparams"
	"github.com/dario-ramos/bitprim-blockchain/model/script"
	"github.com/dario-ramos/bitprim-blockchain/model/tx"
	"github.com/dario-ramos/bitprim-blockchain/util/amount"
)

// ScriptVerifier evaluates an input script against the previous output
// script under a flag set. Script interpretation is external to the
// consensus core.
type ScriptVerifier interface {
	Verify(prevScript *script.Script, transaction *tx.Tx, inputIndex int, flags uint32) bool
}

// StoppedCallback is consulted at suspension points; true aborts validation
// with ErrorServiceStopped without touching persistent state.
type StoppedCallback func() bool

// Activations is the soft-fork set in force for the block under validation.
type Activations uint32

const (
	ActiveBip16 Activations = 1 << iota
	ActiveBip30
	ActiveBip34
	ActiveBip65
	ActiveBip66
)

const (
	version2 = 2
	version3 = 3
	version4 = 4
)

// BlockValidator runs the three validation phases for one candidate block
// at a fixed height against a chain view. It performs no I/O except through
// the view.
type BlockValidator struct {
	height   int32
	block    *block.Block
	params   *chainparams.BitcoinParams
	view     *lchain.ChainView
	verifier ScriptVerifier
	stopped  StoppedCallback

	contextReady   bool
	activations    Activations
	minimumVersion int32
}

func NewBlockValidator(height int32, bl *block.Block, params *chainparams.BitcoinParams,
	view *lchain.ChainView, verifier ScriptVerifier, stopped StoppedCallback) *BlockValidator {
	if stopped == nil {
		stopped = func() bool { return false }
	}
	return &BlockValidator{
		height:   height,
		block:    bl,
		params:   params,
		view:     view,
		verifier: verifier,
		stopped:  stopped,
	}
}

// InitializeContext samples preceding block versions and derives the
// soft-fork activation set and the minimum accepted block version. It must
// run before AcceptBlock or ConnectBlock.
func (v *BlockValidator) InitializeContext() error {
	versions, err := v.view.PrecedingVersions(v.height, v.params.SoftForkSample)
	if err != nil {
		return err
	}

	count4, count3, count2 := 0, 0, 0
	for _, version := range versions {
		if version >= version4 {
			count4++
		}
		if version >= version3 {
			count3++
		}
		if version >= version2 {
			count2++
		}
	}

	enforce := func(count int) bool { return count >= v.params.SoftForkEnforced }
	activate := func(count int) bool { return count >= v.params.SoftForkActivated }

	switch {
	case enforce(count4):
		v.minimumVersion = version4
	case enforce(count3):
		v.minimumVersion = version3
	case enforce(count2):
		v.minimumVersion = version2
	default:
		v.minimumVersion = 1
	}

	if activate(count4) {
		v.activations |= ActiveBip65
	}
	if activate(count3) {
		v.activations |= ActiveBip66
	}
	if activate(count2) {
		v.activations |= ActiveBip34
	}

	// bip30 applies everywhere except two historical mainnet blocks that
	// violate the rule.
	if !v.params.IsBip30Exception(v.height) {
		v.activations |= ActiveBip30
	}

	// bip16 activation was a one-time date-based switch.
	if v.height >= v.params.Bip16ActivationHeight {
		v.activations |= ActiveBip16
	}

	v.contextReady = true
	return nil
}

// IsActive reports whether a soft fork binds this block. The version-gated
// forks only apply once the block itself carries the corresponding version.
func (v *BlockValidator) IsActive(flag Activations) bool {
	if v.activations&flag == 0 {
		return false
	}
	version := v.block.Header.Version
	switch flag {
	case ActiveBip65:
		return version >= version4
	case ActiveBip66:
		return version >= version3
	case ActiveBip34:
		return version >= version2
	}
	return true
}

// MinimumVersion is the lowest block version the sampled supermajority
// still accepts.
func (v *BlockValidator) MinimumVersion() int32 {
	return v.minimumVersion
}

// ScriptFlags derives the verifier flag set from the activation set. bip34
// has no script flag.
func (v *BlockValidator) ScriptFlags() uint32 {
	flags := uint32(script.ScriptVerifyNone)
	if v.IsActive(ActiveBip16) {
		flags |= script.ScriptVerifyP2SH
	}
	if v.IsActive(ActiveBip66) {
		flags |= script.ScriptVerifyDersig
	}
	if v.IsActive(ActiveBip65) {
		flags |= script.ScriptVerifyCheckLockTimeVerify
	}
	return flags
}

func (v *BlockValidator) checkStopped() error {
	if v.stopped() {
		return errcode.New(errcode.ErrorServiceStopped)
	}
	return nil
}

// BlockSubsidy halves every SubsidyHalvingInterval heights and is zero
// after 64 halvings, where the right shift is undefined.
func BlockSubsidy(height int32, params *chainparams.BitcoinParams) amount.Amount {
	halvings := uint(height / params.SubsidyHalvingInterval)
	if halvings >= 64 {
		return 0
	}
	return (50 * amount.COIN) >> halvings
}
