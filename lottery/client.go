// Package lottery wires the store, the watchers and the bet coordinator into
// the single object the UI layer talks to.
package lottery

import (
	"context"
	"math/big"
	"sync"

	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/logging"
	"github.com/donnyesq/gamble/pkg/account"
	"github.com/donnyesq/gamble/pkg/bet"
	"github.com/donnyesq/gamble/pkg/jackpot"
	"github.com/donnyesq/gamble/pkg/providers"
	"github.com/donnyesq/gamble/state"
	"github.com/rs/zerolog"
)

// Gateway is everything the client needs from the provider gateway.
type Gateway interface {
	DetectWallet() bool
	ResolveProviders(ctx context.Context) (providers.Providers, error)
	ResolveContract(ctx context.Context) (providers.Contract, error)
}

// Session mirrors the address to the session endpoint.
type Session interface {
	account.SessionMirror
	Close()
}

// Config holds the client's collaborators.
type Config struct {
	Gateway       Gateway
	Store         *state.Store
	Session       Session
	OnboardingURL string
	Logger        zerolog.Logger
}

// Client is the root of the lottery client. Build one per process and pass
// it by reference.
type Client struct {
	gateway       Gateway
	store         *state.Store
	session       Session
	onboardingURL string
	logger        zerolog.Logger

	jackpot  *jackpot.Watcher
	accounts *account.Watcher
	bets     *bet.Coordinator

	initOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a client. Nothing is dialed until Init.
func New(cfg Config) *Client {
	store := cfg.Store
	if store == nil {
		store = state.NewStore(cfg.Logger)
	}
	return &Client{
		gateway:       cfg.Gateway,
		store:         store,
		session:       cfg.Session,
		onboardingURL: cfg.OnboardingURL,
		logger:        logging.WithComponent(cfg.Logger, "lottery_client"),
		jackpot:       jackpot.NewWatcher(cfg.Gateway, store, cfg.Logger),
		accounts:      account.NewWatcher(cfg.Gateway, store, cfg.Session, cfg.Logger),
		bets:          bet.NewCoordinator(cfg.Gateway, store, cfg.Logger),
		cancel:        func() {},
	}
}

// Init starts the jackpot watcher and, if a wallet is present, the account
// bootstrap. Both run in the background until ctx is done or Close is
// called. Calling Init more than once has no effect.
func (c *Client) Init(ctx context.Context) {
	c.initOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)

		if c.gateway.DetectWallet() {
			c.store.Apply(state.SetEthereumDetected(true))
			c.spawn(func() { c.accounts.InitialLoad(ctx) })
		} else {
			c.logger.Info().Msg("No wallet detected")
			c.store.Apply(state.SetLoading(false))
		}

		c.spawn(func() { c.jackpot.Start(ctx) })
	})
}

// Ready blocks until the bootstrap started by Init has finished. Live
// subscriptions keep running afterwards.
func (c *Client) Ready() {
	c.wg.Wait()
}

func (c *Client) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// Subscribe registers fn for snapshot updates.
func (c *Client) Subscribe(fn state.Observer) *state.Subscription {
	return c.store.Subscribe(fn)
}

// Snapshot returns the current snapshot.
func (c *Client) Snapshot() state.Snapshot {
	return c.store.Snapshot()
}

// SetBuying flags a purchase as in flight.
func (c *Client) SetBuying(buying bool) {
	c.store.Apply(state.SetBuying(buying))
}

// PlaceBet submits a bet. The caller is expected to have set buying first.
func (c *Client) PlaceBet(ctx context.Context, numbers []*big.Int) error {
	return c.bets.PlaceBet(ctx, numbers)
}

// Buy marks a purchase in flight and places the bet.
func (c *Client) Buy(ctx context.Context, numbers []*big.Int) error {
	c.SetBuying(true)
	return c.PlaceBet(ctx, numbers)
}

// ConnectWallet asks the wallet for account access and reloads the account
// once it is granted.
func (c *Client) ConnectWallet(ctx context.Context) error {
	p, err := c.gateway.ResolveProviders(ctx)
	if err != nil {
		return c.fail(errors.Capture(err, errors.ErrProviderUnavailable, "wallet unavailable"))
	}
	if err := p.Wallet.Request(ctx, "eth_requestAccounts"); err != nil {
		return c.fail(errors.Capture(err, errors.ErrNoSignerAvailable, "account access denied"))
	}
	c.accounts.Refresh(ctx)
	return nil
}

// OnboardingURL is where users without a wallet are sent.
func (c *Client) OnboardingURL() string {
	return c.onboardingURL
}

// Close stops the watchers and every subscription.
func (c *Client) Close() {
	c.cancel()
	c.store.Close()
	if c.session != nil {
		c.session.Close()
	}
}

func (c *Client) fail(err *errors.AppError) error {
	c.logger.Warn().Err(err).Msg("Wallet request failed")
	c.store.Apply(state.SetErr(err))
	return err
}
