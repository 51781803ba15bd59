package lblock

import (
	"bytes"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/log"
	"github.com/dario-ramos/bitprim-blockchain/model/block"
	"github.com/dario-ramos/bitprim-blockchain/model/pow"
	"github.com/dario-ramos/bitprim-blockchain/model/script"
)

// AcceptBlock runs the context-dependent checks against the chain prefix.
// InitializeContext must have run first.
func (v *BlockValidator) AcceptBlock() error {
	if !v.contextReady {
		return errcode.NewError(errcode.ErrorValidateInputsFailed, "context not initialized")
	}

	header := v.block.Header

	required, err := v.workRequired()
	if err != nil {
		return err
	}
	if header.Bits != required {
		return errcode.New(errcode.ErrorIncorrectProofOfWork)
	}

	if err := v.checkStopped(); err != nil {
		return err
	}

	medianTime, err := v.view.MedianTimePast(v.height)
	if err != nil {
		return err
	}
	if int64(header.Time) <= medianTime {
		return errcode.New(errcode.ErrorTimestampTooEarly)
	}

	if err := v.checkStopped(); err != nil {
		return err
	}

	// Txs should be final when included in a block.
	for _, transaction := range v.block.Txs {
		if !transaction.IsFinal(v.height, int64(header.Time)) {
			return errcode.New(errcode.ErrorNonFinalTransaction)
		}
		if err := v.checkStopped(); err != nil {
			return err
		}
	}

	// Checkpoints are both DoS protection and a sync optimization.
	blockHash := v.block.GetHash()
	if !v.params.ValidateCheckpoint(&blockHash, v.height) {
		return errcode.New(errcode.ErrorCheckpointsFailed)
	}

	if err := v.checkStopped(); err != nil {
		return err
	}

	if header.Version < v.minimumVersion {
		return errcode.New(errcode.ErrorOldVersionBlock)
	}

	if err := v.checkStopped(); err != nil {
		return err
	}

	// Enforce rule that the coinbase starts with the serialized height.
	if v.IsActive(ActiveBip34) && !isValidCoinbaseHeight(v.height, v.block) {
		return errcode.New(errcode.ErrorCoinbaseHeightMismatch)
	}

	return nil
}

func (v *BlockValidator) workRequired() (uint32, error) {
	var checker pow.Pow
	return checker.GetNextWorkRequired(v.height, v.block.Header.Time, v.view, v.params)
}

// isValidCoinbaseHeight checks that the coinbase input script begins with a
// push of the height as a minimally serialized script number.
func isValidCoinbaseHeight(height int32, bl *block.Block) bool {
	if len(bl.Txs) == 0 || len(bl.Txs[0].GetIns()) == 0 {
		return false
	}
	coinbaseScript := bl.Txs[0].GetIns()[0].GetScriptSig()
	raw := coinbaseScript.GetData()

	heightData := script.NewScriptNum(int64(height)).Serialize()
	expect := make([]byte, 0, len(heightData)+1)
	expect = append(expect, byte(len(heightData)))
	expect = append(expect, heightData...)

	if len(expect) > len(raw) {
		return false
	}
	if !bytes.Equal(expect, raw[:len(expect)]) {
		log.Debug("coinbase at height %d does not begin with expected height push", height)
		return false
	}
	return true
}
