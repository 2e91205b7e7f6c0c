// Package bet submits lottery tickets and folds the outcome into the snapshot.
package bet

import (
	"context"
	"math/big"

	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/logging"
	"github.com/donnyesq/gamble/pkg/providers"
	"github.com/donnyesq/gamble/state"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Stake is the fixed ticket price: one ether, in wei.
var Stake = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Gateway resolves the wallet-bound contract.
type Gateway interface {
	ResolveProviders(ctx context.Context) (providers.Providers, error)
}

// Coordinator places bets.
type Coordinator struct {
	gateway Gateway
	store   *state.Store
	logger  zerolog.Logger
}

// NewCoordinator creates a bet coordinator.
func NewCoordinator(gateway Gateway, store *state.Store, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		gateway: gateway,
		store:   store,
		logger:  logging.WithComponent(logger, "bet_coordinator"),
	}
}

// PlaceBet submits numbers with the fixed stake attached and waits for the
// outcome. Buying is false once it returns. The returned error has already
// been recorded in the snapshot.
func (c *Coordinator) PlaceBet(ctx context.Context, numbers []*big.Int) error {
	p, err := c.gateway.ResolveProviders(ctx)
	if err != nil {
		return c.fail(errors.Capture(err, errors.ErrProviderUnavailable, "wallet unavailable"))
	}

	picks := lo.Map(numbers, func(n *big.Int, _ int) string { return n.String() })
	c.logger.Info().Strs("numbers", picks).Msg("Placing bet")

	if err := p.Contract.Bet(ctx, numbers, new(big.Int).Set(Stake)); err != nil {
		return c.fail(errors.Capture(err, errors.ErrRemoteCallFailure, "bet failed"))
	}

	c.store.Apply(state.BetPlaced(numbers))
	c.logger.Info().Strs("numbers", picks).Msg("Bet placed")
	return nil
}

func (c *Coordinator) fail(err *errors.AppError) error {
	c.logger.Warn().Err(err).Msg("Bet failed")
	c.store.Apply(state.BetFailed(err))
	return err
}
