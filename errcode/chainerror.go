package errcode

import "fmt"

type ChainErr int

const (
	ErrorServiceStopped ChainErr = ChainErrorBase + iota
	ErrorSizeLimits
	ErrorProofOfWork
	ErrorFuturisticTimestamp
	ErrorFirstNotCoinbase
	ErrorExtraCoinbases
	ErrorDuplicate
	ErrorTooManySigs
	ErrorMerkleMismatch
	ErrorIncorrectProofOfWork
	ErrorTimestampTooEarly
	ErrorNonFinalTransaction
	ErrorCheckpointsFailed
	ErrorOldVersionBlock
	ErrorCoinbaseHeightMismatch
	ErrorDuplicateOrSpent
	ErrorValidateInputsFailed
	ErrorFeesOutOfRange
	ErrorCoinbaseTooLarge
)

var ChainErrString = map[ChainErr]string{
	ErrorServiceStopped:         "service stopped during validation",
	ErrorSizeLimits:             "block violates size limits",
	ErrorProofOfWork:            "proof of work is invalid",
	ErrorFuturisticTimestamp:    "block timestamp too far in the future",
	ErrorFirstNotCoinbase:       "first transaction is not coinbase",
	ErrorExtraCoinbases:         "more than one coinbase transaction",
	ErrorDuplicate:              "duplicate transactions in block",
	ErrorTooManySigs:            "too many signature operations",
	ErrorMerkleMismatch:         "merkle root mismatch",
	ErrorIncorrectProofOfWork:   "incorrect proof of work for height",
	ErrorTimestampTooEarly:      "block timestamp not after median time past",
	ErrorNonFinalTransaction:    "block contains a non-final transaction",
	ErrorCheckpointsFailed:      "block hash rejected by checkpoint",
	ErrorOldVersionBlock:        "block version below required minimum",
	ErrorCoinbaseHeightMismatch: "coinbase does not start with serialized height",
	ErrorDuplicateOrSpent:       "duplicate of a fully spent transaction",
	ErrorValidateInputsFailed:   "input validation failed",
	ErrorFeesOutOfRange:         "transaction fees out of range",
	ErrorCoinbaseTooLarge:       "coinbase value exceeds subsidy plus fees",
}

func (chainerr ChainErr) String() string {
	if s, ok := ChainErrString[chainerr]; ok {
		return s
	}
	return fmt.Sprintf("Unknown code (%d)", chainerr)
}
