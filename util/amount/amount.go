package amount

import (
	"github.com/pkg/errors"
)

// Amount is a quantity of satoshis.
type Amount int64

const (
	COIN Amount = 100000000

	// MaxMoney is the total monetary cap, 21 million coins.
	MaxMoney = 21000000 * COIN
)

func (a Amount) IsValid() bool {
	return a >= 0 && a <= MaxMoney
}

func NewAmount(v int64) (Amount, error) {
	a := Amount(v)
	if !a.IsValid() {
		return 0, errors.Errorf("amount %d out of range", v)
	}
	return a, nil
}
