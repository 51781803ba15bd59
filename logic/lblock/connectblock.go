package lblock

import (
	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/log"
	"github.com/dario-ramos/bitprim-blockchain/model/consensus"
	"github.com/dario-ramos/bitprim-blockchain/model/outpoint"
	"github.com/dario-ramos/bitprim-blockchain/model/tx"
	"github.com/dario-ramos/bitprim-blockchain/util/amount"
)

// ConnectBlock runs the chain-connected checks: duplicate transaction
// hashes under bip30, per-input script and double-spend validation, fee
// tally and the coinbase value cap. InitializeContext must have run first.
func (v *BlockValidator) ConnectBlock() error {
	if !v.contextReady {
		return errcode.NewError(errcode.ErrorValidateInputsFailed, "context not initialized")
	}

	transactions := v.block.Txs

	// These coinbase transactions are spent and are not indexed.
	if v.IsActive(ActiveBip30) {
		for _, transaction := range transactions {
			duplicate, err := v.isSpentDuplicate(transaction)
			if err != nil {
				return err
			}
			if duplicate {
				return errcode.New(errcode.ErrorDuplicateOrSpent)
			}
			if err := v.checkStopped(); err != nil {
				return err
			}
		}
	}

	var fees amount.Amount
	totalSigOps := 0

	for txIndex, transaction := range transactions {
		// Sigops count for the coinbase too, but the other checks do not
		// apply to it.
		totalSigOps += transaction.GetSigOpCountWithoutP2SH()
		if totalSigOps > consensus.MaxBlockSigOpsCount {
			return errcode.New(errcode.ErrorTooManySigs)
		}

		if err := v.checkStopped(); err != nil {
			return err
		}

		if transaction.IsCoinBase() {
			continue
		}

		valueIn := amount.Amount(0)
		ok, err := v.validateInputs(transaction, txIndex, &valueIn, &totalSigOps)
		if err != nil {
			return err
		}
		if !ok {
			txHash := transaction.GetHash()
			log.Warn("invalid input in transaction %s", txHash.String())
			return errcode.New(errcode.ErrorValidateInputsFailed)
		}

		if err := v.checkStopped(); err != nil {
			return err
		}

		if !tallyFees(transaction, valueIn, &fees) {
			return errcode.New(errcode.ErrorFeesOutOfRange)
		}
	}

	if err := v.checkStopped(); err != nil {
		return err
	}

	coinbaseValue := transactions[0].GetValueOut()
	if coinbaseValue > BlockSubsidy(v.height, v.params)+fees {
		return errcode.New(errcode.ErrorCoinbaseTooLarge)
	}

	return nil
}

// isSpentDuplicate reports whether an earlier transaction with the same
// hash exists on the committed chain with every output spent; ConnectBlock
// rejects such a duplicate under bip30.
func (v *BlockValidator) isSpentDuplicate(transaction *tx.Tx) (bool, error) {
	txHash := transaction.GetHash()

	exists, err := v.view.TransactionExists(&txHash)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	previous, _, err := v.view.FetchTransaction(&txHash)
	if err != nil {
		return false, err
	}
	for outputIndex := range previous.GetOuts() {
		spent, err := v.view.IsOutputSpentCommitted(
			outpoint.NewOutPoint(txHash, uint32(outputIndex)))
		if err != nil {
			return false, err
		}
		if !spent {
			return false, nil
		}
	}
	return true, nil
}

func (v *BlockValidator) validateInputs(transaction *tx.Tx, txIndex int,
	valueIn *amount.Amount, totalSigOps *int) (bool, error) {
	for inputIndex := range transaction.GetIns() {
		ok, err := v.connectInput(transaction, txIndex, inputIndex, valueIn, totalSigOps)
		if err != nil {
			return false, err
		}
		if !ok {
			txHash := transaction.GetHash()
			log.Warn("invalid input [%s:%d]", txHash.String(), inputIndex)
			return false, nil
		}
		if err := v.checkStopped(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (v *BlockValidator) connectInput(transaction *tx.Tx, txIndex, inputIndex int,
	valueIn *amount.Amount, totalSigOps *int) (bool, error) {
	input := transaction.GetIns()[inputIndex]
	previousOutput := input.PreviousOutPoint

	previousTx, previousHeight, err := v.view.FetchTransaction(&previousOutput.Hash)
	if errcode.IsErrorCode(err, errcode.ErrorNotFound) {
		log.Warn("failure fetching input transaction [%s]", previousOutput.Hash.String())
		return false, nil
	}
	if err != nil {
		return false, err
	}

	previousTxOut := previousTx.GetTxOut(int(previousOutput.Index))
	if previousTxOut == nil {
		log.Warn("input references missing output [%s:%d]",
			previousOutput.Hash.String(), previousOutput.Index)
		return false, nil
	}

	// Accurate sigop accounting for pay-to-script-hash spends.
	if previousTxOut.GetScriptPubKey().IsPayToScriptHash() {
		*totalSigOps += input.GetScriptSig().GetP2SHSigOpCount()
		if *totalSigOps > consensus.MaxBlockSigOpsCount {
			log.Warn("total sigops exceeds block maximum")
			return false, errcode.New(errcode.ErrorTooManySigs)
		}
	}

	outputValue := previousTxOut.GetValue()
	if outputValue > amount.MaxMoney {
		log.Warn("output money exceeds 21 million")
		return false, nil
	}

	if previousTx.IsCoinBase() {
		heightDifference := v.height - previousHeight
		if heightDifference < consensus.CoinbaseMaturity {
			log.Warn("immature coinbase spend attempt at height %d of coinbase at %d",
				v.height, previousHeight)
			return false, nil
		}
	}

	if !v.verifier.Verify(previousTxOut.GetScriptPubKey(), transaction, inputIndex, v.ScriptFlags()) {
		log.Warn("input script invalid consensus")
		return false, nil
	}

	// Search for double spends in both the committed chain and the branch.
	spent, err := v.view.IsOutputSpent(previousOutput, txIndex, inputIndex)
	if err != nil {
		return false, err
	}
	if spent {
		log.Warn("double spend attempt on [%s:%d]",
			previousOutput.Hash.String(), previousOutput.Index)
		return false, nil
	}

	*valueIn += outputValue
	if *valueIn > amount.MaxMoney {
		log.Warn("input money exceeds 21 million")
		return false, nil
	}

	return true, nil
}

func tallyFees(transaction *tx.Tx, valueIn amount.Amount, fees *amount.Amount) bool {
	valueOut := transaction.GetValueOut()
	if valueOut > valueIn {
		return false
	}
	*fees += valueIn - valueOut
	return *fees <= amount.MaxMoney
}
