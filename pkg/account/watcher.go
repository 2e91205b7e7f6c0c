// Package account follows the wallet's authorized address and keeps the
// snapshot's address, balance and bet history in step with it.
package account

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/logging"
	"github.com/donnyesq/gamble/pkg/providers"
	"github.com/donnyesq/gamble/state"
	"github.com/rs/zerolog"
)

// Gateway resolves the wallet and contract.
type Gateway interface {
	DetectWallet() bool
	ResolveProviders(ctx context.Context) (providers.Providers, error)
}

// SessionMirror receives best-effort copies of the address.
type SessionMirror interface {
	Upsert(address string)
	Remove()
}

// Watcher reacts to account changes reported by the wallet.
type Watcher struct {
	gateway Gateway
	store   *state.Store
	session SessionMirror
	logger  zerolog.Logger

	// generation is bumped on every account change; a balance fetch only
	// commits if no later change was seen while it was in flight.
	generation atomic.Uint64
	watchOnce  sync.Once
}

// NewWatcher creates an account watcher.
func NewWatcher(gateway Gateway, store *state.Store, session SessionMirror, logger zerolog.Logger) *Watcher {
	return &Watcher{
		gateway: gateway,
		store:   store,
		session: session,
		logger:  logging.WithComponent(logger, "account_watcher"),
	}
}

// HandleAccountsChanged applies one accounts-changed notification. Only the
// first address is used. The balance fetch runs on the caller's goroutine.
func (w *Watcher) HandleAccountsChanged(ctx context.Context, wallet providers.Wallet, accounts []string) {
	gen := w.generation.Add(1)

	if len(accounts) == 0 {
		w.logger.Info().Msg("Wallet disconnected")
		w.session.Remove()
		w.store.Apply(state.ClearAccount())
		return
	}

	address := accounts[0]
	logger := logging.WithAddress(w.logger, address)
	w.session.Upsert(address)

	balance, err := wallet.BalanceAt(ctx, address)
	if err != nil {
		w.fail(errors.RemoteCall(err, "failed to fetch balance"))
		return
	}

	w.store.Apply(state.When(w.current(gen), state.SetAccount(address, balance)))
	logger.Info().Str("balance", balance.String()).Msg("Wallet account changed")
}

// InitialLoad registers for account changes and performs one eager load of
// address, balance and bets. It does nothing if no wallet is present.
// Loading is cleared when it returns, whatever the outcome.
func (w *Watcher) InitialLoad(ctx context.Context) {
	if !w.gateway.DetectWallet() {
		return
	}
	defer w.store.Apply(state.SetLoading(false))

	p, err := w.gateway.ResolveProviders(ctx)
	if err != nil {
		w.fail(errors.Capture(err, errors.ErrProviderUnavailable, "wallet unavailable"))
		return
	}

	w.watch(ctx, p.Wallet)
	w.load(ctx, p)
}

// Refresh reloads address, balance and bets, e.g. after the user granted
// account access.
func (w *Watcher) Refresh(ctx context.Context) {
	p, err := w.gateway.ResolveProviders(ctx)
	if err != nil {
		w.fail(errors.Capture(err, errors.ErrProviderUnavailable, "wallet unavailable"))
		return
	}
	w.load(ctx, p)
}

func (w *Watcher) watch(ctx context.Context, wallet providers.Wallet) {
	w.watchOnce.Do(func() {
		err := wallet.SubscribeAccountsChanged(ctx, func(accounts []string) {
			w.HandleAccountsChanged(ctx, wallet, accounts)
		})
		if err != nil {
			w.fail(errors.RemoteCall(err, "failed to watch accounts"))
		}
	})
}

func (w *Watcher) load(ctx context.Context, p providers.Providers) {
	gen := w.generation.Add(1)

	address, err := p.Wallet.Address(ctx)
	if err != nil {
		w.fail(errors.Capture(err, errors.ErrNoSignerAvailable, "wallet is locked"))
		return
	}
	w.session.Upsert(address)

	balance, err := p.Wallet.BalanceAt(ctx, address)
	if err != nil {
		w.fail(errors.RemoteCall(err, "failed to fetch balance"))
		return
	}

	bets, err := p.Contract.Bets(ctx)
	if err != nil {
		w.fail(errors.RemoteCall(err, "failed to fetch bets"))
		return
	}

	w.store.Apply(state.When(w.current(gen), state.LoadAccount(address, balance, bets)))
	logger := logging.WithAddress(w.logger, address)
	logger.Info().
		Int("bets", len(bets)).
		Msg("Wallet loaded")
}

func (w *Watcher) current(gen uint64) func() bool {
	return func() bool { return w.generation.Load() == gen }
}

func (w *Watcher) fail(err *errors.AppError) {
	w.logger.Warn().Err(err).Msg("Account watcher error")
	w.store.Apply(state.SetErr(err))
}
