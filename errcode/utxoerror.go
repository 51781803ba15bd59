package errcode

import "fmt"

type UtxoErr int

const (
	ErrorNotFound UtxoErr = UtxoErrorBase + iota
	ErrorUnspentOutput
)

var UtxoErrString = map[UtxoErr]string{
	ErrorNotFound:      "record not found",
	ErrorUnspentOutput: "output is not spent",
}

func (ue UtxoErr) String() string {
	if s, ok := UtxoErrString[ue]; ok {
		return s
	}
	return fmt.Sprintf("Unknown code (%d)", ue)
}
