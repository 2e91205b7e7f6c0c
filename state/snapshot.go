// Package state holds the single observable snapshot of the lottery client and
// the transitions that move it forward.
package state

import (
	"math/big"

	"github.com/donnyesq/gamble/errors"
	"github.com/samber/lo"
)

// Snapshot is the full client state at one point in time.
// Published snapshots are never modified; observers must treat the big
// integers and bet slices as read-only.
type Snapshot struct {
	Jackpot          *big.Int
	UserBalance      *big.Int
	UserAddress      string
	EthereumDetected bool
	Bets             [][]*big.Int
	Err              *errors.AppError
	Loading          bool
	Buying           bool
}

// Initial returns the snapshot the store starts from.
func Initial() Snapshot {
	return Snapshot{
		Jackpot:     new(big.Int),
		UserBalance: new(big.Int),
		Bets:        [][]*big.Int{},
		Loading:     true,
	}
}

// Connected reports whether a wallet address is known.
func (s Snapshot) Connected() bool {
	return s.UserAddress != ""
}

// Equal compares two snapshots by value.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.UserAddress != o.UserAddress ||
		s.EthereumDetected != o.EthereumDetected ||
		s.Loading != o.Loading ||
		s.Buying != o.Buying {
		return false
	}
	if !intEqual(s.Jackpot, o.Jackpot) || !intEqual(s.UserBalance, o.UserBalance) {
		return false
	}
	if !errEqual(s.Err, o.Err) {
		return false
	}
	if len(s.Bets) != len(o.Bets) {
		return false
	}
	for i := range s.Bets {
		if !numbersEqual(s.Bets[i], o.Bets[i]) {
			return false
		}
	}
	return true
}

func intEqual(a, b *big.Int) bool {
	return valueOrZero(a).Cmp(valueOrZero(b)) == 0
}

func numbersEqual(a, b []*big.Int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !intEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func errEqual(a, b *errors.AppError) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Code == b.Code && a.Error() == b.Error()
}

var zero = new(big.Int)

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return zero
	}
	return v
}

func cloneInt(v *big.Int) *big.Int {
	return new(big.Int).Set(valueOrZero(v))
}

// CloneNumbers copies a bet so the snapshot does not share memory with the caller.
func CloneNumbers(numbers []*big.Int) []*big.Int {
	return lo.Map(numbers, func(n *big.Int, _ int) *big.Int {
		return cloneInt(n)
	})
}

func cloneBets(bets [][]*big.Int) [][]*big.Int {
	out := make([][]*big.Int, 0, len(bets))
	for _, b := range bets {
		out = append(out, CloneNumbers(b))
	}
	return out
}
