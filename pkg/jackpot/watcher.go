// Package jackpot keeps the snapshot's prize pool in step with the contract.
package jackpot

import (
	"context"
	"math/big"

	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/pkg/providers"
	"github.com/donnyesq/gamble/state"
	"github.com/rs/zerolog"
)

// ContractResolver hands out a contract that can be read without a wallet.
type ContractResolver interface {
	ResolveContract(ctx context.Context) (providers.Contract, error)
}

// Watcher fetches the jackpot once and then follows jackpot-updated
// notifications for the lifetime of the context passed to Start.
type Watcher struct {
	resolver ContractResolver
	store    *state.Store
	logger   zerolog.Logger
}

// NewWatcher creates a jackpot watcher.
func NewWatcher(resolver ContractResolver, store *state.Store, logger zerolog.Logger) *Watcher {
	return &Watcher{
		resolver: resolver,
		store:    store,
		logger:   logger.With().Str("component", "jackpot_watcher").Logger(),
	}
}

// Start runs the initial fetch and registers for updates. Every failure is
// folded into the snapshot; Start itself never fails.
func (w *Watcher) Start(ctx context.Context) {
	contract, err := w.resolver.ResolveContract(ctx)
	if err != nil {
		w.fail(errors.Capture(err, errors.ErrProviderUnavailable, "lottery contract unavailable"))
		return
	}

	jackpot, err := contract.CurrentJackpot(ctx)
	if err != nil {
		w.fail(errors.RemoteCall(err, "failed to fetch jackpot"))
	} else {
		w.store.Apply(state.SetJackpot(jackpot))
	}

	// The stream is registered whatever the initial fetch returned.
	err = contract.WatchJackpot(ctx, func(v *big.Int) {
		w.logger.Debug().Str("jackpot", v.String()).Msg("Jackpot updated")
		w.store.Apply(state.SetJackpot(v))
	})
	if err != nil {
		w.fail(errors.RemoteCall(err, "failed to watch jackpot"))
		return
	}

	w.logger.Info().Msg("Jackpot watcher started")
}

func (w *Watcher) fail(err *errors.AppError) {
	w.logger.Warn().Err(err).Msg("Jackpot watcher error")
	w.store.Apply(state.SetErr(err))
}
