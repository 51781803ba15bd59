package errcode

import "fmt"

type TxErr int

const (
	ErrorEmptyTransaction TxErr = TxErrorBase + iota
	ErrorOutputValueOverflow
	ErrorTotalOutputValueOverflow
	ErrorDuplicateTxInput
	ErrorCoinbaseScriptSize
	ErrorPreviousOutputNull
)

var TxErrString = map[TxErr]string{
	ErrorEmptyTransaction:         "transaction has no inputs or no outputs",
	ErrorOutputValueOverflow:      "output value out of range",
	ErrorTotalOutputValueOverflow: "sum of outputs out of range",
	ErrorDuplicateTxInput:         "duplicate input within transaction",
	ErrorCoinbaseScriptSize:       "coinbase script size out of range",
	ErrorPreviousOutputNull:       "previous output is null",
}

func (txerr TxErr) String() string {
	if s, ok := TxErrString[txerr]; ok {
		return s
	}
	return fmt.Sprintf("Unknown code (%d)", txerr)
}
