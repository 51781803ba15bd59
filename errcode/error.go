package errcode

import (
	"fmt"
)

const (
	ChainErrorBase = iota * 1000
	TxErrorBase
	UtxoErrorBase
	DiskErrorBase
)

type ProjectError struct {
	Module string
	Code   int
	Desc   string
}

func (e ProjectError) Error() string {
	return fmt.Sprintf("module: %s, global errcode: %v, errdesc: %s", e.Module, e.Code, e.Desc)
}

func getCodeAndName(errCode fmt.Stringer) (int, string) {
	code := 0
	name := ""

	switch t := errCode.(type) {
	case ChainErr:
		code = int(t)
		name = "chain"
	case TxErr:
		code = int(t)
		name = "transaction"
	case UtxoErr:
		code = int(t)
		name = "utxo"
	case DiskErr:
		code = int(t)
		name = "disk"
	default:
	}

	return code, name
}

func IsErrorCode(err error, errCode fmt.Stringer) bool {
	e, ok := err.(ProjectError)
	icode, _ := getCodeAndName(errCode)
	return ok && icode == e.Code
}

func New(errCode fmt.Stringer) error {
	code, name := getCodeAndName(errCode)

	return ProjectError{
		Module: name,
		Code:   code,
		Desc:   errCode.String(),
	}
}

func NewError(errCode fmt.Stringer, desc string) error {
	code, name := getCodeAndName(errCode)

	return ProjectError{
		Module: name,
		Code:   code,
		Desc:   desc,
	}
}
