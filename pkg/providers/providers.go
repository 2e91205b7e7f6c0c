package providers

import (
	"context"
	"math/big"
)

// Wallet is the user's signing/account environment.
type Wallet interface {
	// Address returns the currently authorized account. It fails when the
	// wallet is locked or the user has not granted access yet.
	Address(ctx context.Context) (string, error)
	// BalanceAt returns the native balance of address in wei.
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
	// SubscribeAccountsChanged calls handler with the new account list each
	// time the wallet reports a change, until ctx is done. The list holds
	// zero or more addresses; only the first one is used.
	SubscribeAccountsChanged(ctx context.Context, handler func(accounts []string)) error
	// Request issues a raw wallet request, e.g. a permission prompt.
	Request(ctx context.Context, method string, params ...any) error
}

// Contract is the on-chain lottery program.
type Contract interface {
	// CurrentJackpot reads the prize pool in wei.
	CurrentJackpot(ctx context.Context) (*big.Int, error)
	// WatchJackpot calls handler with every jackpot-updated notification
	// until ctx is done. Registration errors are returned synchronously.
	WatchJackpot(ctx context.Context, handler func(jackpot *big.Int)) error
	// Bets returns the caller's bet history.
	Bets(ctx context.Context) ([][]*big.Int, error)
	// Bet submits numbers with value wei attached and waits for the outcome.
	Bet(ctx context.Context, numbers []*big.Int, value *big.Int) error
}

// Providers is the resolved pair handed out by the gateway.
type Providers struct {
	Wallet   Wallet
	Contract Contract
}

// JackpotSource is anything that can stream jackpot notifications, e.g. a
// message-bus feed standing in for contract logs.
type JackpotSource interface {
	WatchJackpot(ctx context.Context, handler func(jackpot *big.Int)) error
}
