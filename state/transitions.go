package state

import (
	"math/big"

	"github.com/donnyesq/gamble/errors"
)

// Transition maps one snapshot to the next. It receives a copy of the current
// snapshot and must not modify any pointer it reaches through it.
type Transition func(Snapshot) Snapshot

// SetJackpot replaces the prize pool. Applying it twice is the same as once.
func SetJackpot(jackpot *big.Int) Transition {
	v := cloneInt(jackpot)
	return func(s Snapshot) Snapshot {
		s.Jackpot = v
		return s
	}
}

// SetAccount commits an address and its balance together.
func SetAccount(address string, balance *big.Int) Transition {
	if address == "" {
		return ClearAccount()
	}
	v := cloneInt(balance)
	return func(s Snapshot) Snapshot {
		s.UserAddress = address
		s.UserBalance = v
		return s
	}
}

// ClearAccount marks the wallet as disconnected.
func ClearAccount() Transition {
	return func(s Snapshot) Snapshot {
		s.UserAddress = ""
		s.UserBalance = new(big.Int)
		return s
	}
}

// LoadAccount commits the result of the bootstrap load in one step.
func LoadAccount(address string, balance *big.Int, bets [][]*big.Int) Transition {
	account := SetAccount(address, balance)
	loaded := cloneBets(bets)
	return func(s Snapshot) Snapshot {
		s = account(s)
		s.Bets = loaded
		s.EthereumDetected = true
		return s
	}
}

// SetEthereumDetected records wallet presence. Once true it stays true.
func SetEthereumDetected(detected bool) Transition {
	return func(s Snapshot) Snapshot {
		s.EthereumDetected = s.EthereumDetected || detected
		return s
	}
}

// SetErr overwrites the last captured failure.
func SetErr(err *errors.AppError) Transition {
	return func(s Snapshot) Snapshot {
		s.Err = err
		return s
	}
}

// SetBuying flags a bet submission as in flight.
func SetBuying(buying bool) Transition {
	return func(s Snapshot) Snapshot {
		s.Buying = buying
		return s
	}
}

// SetLoading toggles the bootstrap window.
func SetLoading(loading bool) Transition {
	return func(s Snapshot) Snapshot {
		s.Loading = loading
		return s
	}
}

// SetBets replaces the bet list wholesale.
func SetBets(bets [][]*big.Int) Transition {
	v := cloneBets(bets)
	return func(s Snapshot) Snapshot {
		s.Bets = v
		return s
	}
}

// BetPlaced appends a confirmed bet and ends the purchase.
func BetPlaced(numbers []*big.Int) Transition {
	bet := CloneNumbers(numbers)
	return func(s Snapshot) Snapshot {
		bets := make([][]*big.Int, 0, len(s.Bets)+1)
		bets = append(bets, s.Bets...)
		s.Bets = append(bets, bet)
		s.Buying = false
		return s
	}
}

// BetFailed records a failed purchase and ends it.
func BetFailed(err *errors.AppError) Transition {
	return func(s Snapshot) Snapshot {
		s.Err = err
		s.Buying = false
		return s
	}
}

// When applies t only if cond still holds at the moment the store runs it.
func When(cond func() bool, t Transition) Transition {
	return func(s Snapshot) Snapshot {
		if !cond() {
			return s
		}
		return t(s)
	}
}

// Compose runs transitions left to right as a single step.
func Compose(ts ...Transition) Transition {
	return func(s Snapshot) Snapshot {
		for _, t := range ts {
			s = t(s)
		}
		return s
	}
}
