package provider

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/donnyesq/gamble/config"
	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/pkg/providers"
	"github.com/rs/zerolog"
)

// Dialer negotiates the capabilities the gateway hands out.
type Dialer interface {
	// Dial connects to the wallet and returns it with a contract bound to it.
	Dial(ctx context.Context) (providers.Providers, error)
	// DialReadOnly returns a contract that can be read without a wallet.
	DialReadOnly(ctx context.Context) (providers.Contract, error)
}

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	// Detector reports whether a wallet injection point exists.
	Detector func() bool
	Dialer   Dialer
	// JackpotFeed, if set, replaces the contract's own jackpot notifications.
	JackpotFeed providers.JackpotSource
	Logger      zerolog.Logger
}

// Gateway lazily resolves and caches the wallet and contract capabilities.
type Gateway struct {
	detect func() bool
	dialer Dialer
	feed   providers.JackpotSource
	logger zerolog.Logger

	mu       sync.Mutex
	resolved *providers.Providers

	readOnlyMu sync.Mutex
	readOnly   providers.Contract
}

// NewGateway creates a gateway. A nil Detector means no wallet.
func NewGateway(cfg GatewayConfig) *Gateway {
	detect := cfg.Detector
	if detect == nil {
		detect = func() bool { return false }
	}
	return &Gateway{
		detect: detect,
		dialer: cfg.Dialer,
		feed:   cfg.JackpotFeed,
		logger: cfg.Logger.With().Str("component", "provider_gateway").Logger(),
	}
}

// DetectFromConfig treats a configured wallet endpoint as the injection point.
func DetectFromConfig(cfg config.WalletConfig) func() bool {
	return func() bool { return cfg.RPCURL != "" }
}

// DetectWallet reports whether a wallet is present. It never dials.
func (g *Gateway) DetectWallet() bool {
	return g.detect()
}

// ResolveProviders returns the wallet and contract, dialing at most once
// successfully. Failures are returned to the caller and not cached.
func (g *Gateway) ResolveProviders(ctx context.Context) (providers.Providers, error) {
	if !g.DetectWallet() {
		return providers.Providers{}, errors.ProviderUnavailable()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.resolved != nil {
		return *g.resolved, nil
	}

	p, err := g.dialer.Dial(ctx)
	if err != nil {
		return providers.Providers{}, fmt.Errorf("failed to resolve providers: %w", err)
	}
	p.Contract = g.withFeed(p.Contract)
	g.resolved = &p

	g.logger.Debug().Msg("Providers resolved")
	return p, nil
}

// ResolveContract returns a read-only contract usable without a wallet.
func (g *Gateway) ResolveContract(ctx context.Context) (providers.Contract, error) {
	g.readOnlyMu.Lock()
	defer g.readOnlyMu.Unlock()

	if g.readOnly != nil {
		return g.readOnly, nil
	}

	c, err := g.dialer.DialReadOnly(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contract: %w", err)
	}
	g.readOnly = g.withFeed(c)

	g.logger.Debug().Msg("Read-only contract resolved")
	return g.readOnly, nil
}

func (g *Gateway) withFeed(c providers.Contract) providers.Contract {
	if g.feed == nil || c == nil {
		return c
	}
	return &feedContract{Contract: c, feed: g.feed}
}

// feedContract serves jackpot notifications from an external feed.
type feedContract struct {
	providers.Contract
	feed providers.JackpotSource
}

func (c *feedContract) WatchJackpot(ctx context.Context, handler func(*big.Int)) error {
	return c.feed.WatchJackpot(ctx, handler)
}
