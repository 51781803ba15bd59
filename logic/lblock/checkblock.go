package lblock

import (
	set "gopkg.in/fatih/set.v0"

	"github.com/dario-ramos/bitprim-blockchain/errcode"
	"github.com/dario-ramos/bitprim-blockchain/log"
	"github.com/dario-ramos/bitprim-blockchain/logic/merkleroot"
	"github.com/dario-ramos/bitprim-blockchain/model/consensus"
	"github.com/dario-ramos/bitprim-blockchain/model/outpoint"
	"github.com/dario-ramos/bitprim-blockchain/model/pow"
	"github.com/dario-ramos/bitprim-blockchain/model/tx"
	"github.com/dario-ramos/bitprim-blockchain/util"
)

const maxTimestampOffsetSec = 2 * 60 * 60

// CheckBlock runs the stateless checks. It is deterministic and depends
// only on the block, the clock bound aside.
func (v *BlockValidator) CheckBlock() error {
	transactions := v.block.Txs

	if len(transactions) == 0 || len(transactions) > consensus.MaxBlockSize ||
		v.block.EncodeSize() > consensus.MaxBlockSize {
		return errcode.New(errcode.ErrorSizeLimits)
	}

	header := v.block.Header
	blockHash := v.block.GetHash()
	var checker pow.Pow
	if !checker.CheckProofOfWork(&blockHash, header.Bits, v.params) {
		return errcode.New(errcode.ErrorProofOfWork)
	}

	if err := v.checkStopped(); err != nil {
		return err
	}

	if int64(header.Time) > util.GetAdjustedTimeSec()+maxTimestampOffsetSec {
		return errcode.New(errcode.ErrorFuturisticTimestamp)
	}

	if err := v.checkStopped(); err != nil {
		return err
	}

	if !transactions[0].IsCoinBase() {
		return errcode.New(errcode.ErrorFirstNotCoinbase)
	}

	for _, transaction := range transactions[1:] {
		if err := v.checkStopped(); err != nil {
			return err
		}
		if transaction.IsCoinBase() {
			return errcode.New(errcode.ErrorExtraCoinbases)
		}
	}

	for i, transaction := range transactions {
		if err := v.checkStopped(); err != nil {
			return err
		}
		if err := checkTransactionSanity(transaction, i == 0); err != nil {
			return err
		}
	}

	if err := v.checkStopped(); err != nil {
		return err
	}

	if !isDistinctTxSet(transactions) {
		return errcode.New(errcode.ErrorDuplicate)
	}

	if err := v.checkStopped(); err != nil {
		return err
	}

	sigOps := 0
	for _, transaction := range transactions {
		sigOps += transaction.GetSigOpCountWithoutP2SH()
	}
	if sigOps > consensus.MaxBlockSigOpsCount {
		return errcode.New(errcode.ErrorTooManySigs)
	}

	if err := v.checkStopped(); err != nil {
		return err
	}

	mutated := false
	merkle := merkleroot.BlockMerkleRoot(transactions, &mutated)
	if !header.MerkleRoot.IsEqual(&merkle) {
		log.Debug("block %s merkle root mismatch", blockHash.String())
		return errcode.New(errcode.ErrorMerkleMismatch)
	}
	if mutated {
		return errcode.New(errcode.ErrorDuplicate)
	}

	return nil
}

func checkTransactionSanity(transaction *tx.Tx, coinbase bool) error {
	if coinbase {
		if err := transaction.CheckCoinbaseTransaction(); err != nil {
			return err
		}
	} else {
		if err := transaction.CheckRegularTransaction(); err != nil {
			return err
		}
	}
	outPointSet := make(map[outpoint.OutPoint]bool)
	return transaction.CheckDuplicateIns(&outPointSet)
}

// isDistinctTxSet tests distinctness by transaction hash.
func isDistinctTxSet(transactions []*tx.Tx) bool {
	hashes := set.New(set.NonThreadSafe)
	for _, transaction := range transactions {
		hashes.Add(transaction.GetHash())
	}
	return hashes.Size() == len(transactions)
}
