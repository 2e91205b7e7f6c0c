package provider

import (
	"context"
	stderrors "errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/donnyesq/gamble/config"
	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/pkg/providers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubContract struct {
	providers.Contract
	watched atomic.Int32
}

func (c *stubContract) WatchJackpot(ctx context.Context, handler func(*big.Int)) error {
	c.watched.Add(1)
	return nil
}

type countingDialer struct {
	dials    atomic.Int32
	readOnly atomic.Int32
	failures int32
	contract *stubContract
}

func (d *countingDialer) Dial(ctx context.Context) (providers.Providers, error) {
	n := d.dials.Add(1)
	if n <= d.failures {
		return providers.Providers{}, stderrors.New("dial refused")
	}
	return providers.Providers{Contract: d.contract}, nil
}

func (d *countingDialer) DialReadOnly(ctx context.Context) (providers.Contract, error) {
	d.readOnly.Add(1)
	return d.contract, nil
}

type stubFeed struct{ watched atomic.Int32 }

func (f *stubFeed) WatchJackpot(ctx context.Context, handler func(*big.Int)) error {
	f.watched.Add(1)
	return nil
}

func TestResolveProvidersWithoutWallet(t *testing.T) {
	dialer := &countingDialer{contract: &stubContract{}}
	g := NewGateway(GatewayConfig{Dialer: dialer, Logger: zerolog.Nop()})

	assert.False(t, g.DetectWallet())
	_, err := g.ResolveProviders(context.Background())
	assert.True(t, errors.Is(err, errors.ErrProviderUnavailable))
	assert.Zero(t, dialer.dials.Load())
}

func TestResolveProvidersIsMemoized(t *testing.T) {
	dialer := &countingDialer{contract: &stubContract{}}
	g := NewGateway(GatewayConfig{
		Detector: func() bool { return true },
		Dialer:   dialer,
		Logger:   zerolog.Nop(),
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.ResolveProviders(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), dialer.dials.Load())
}

func TestResolveProvidersDoesNotCacheFailure(t *testing.T) {
	dialer := &countingDialer{contract: &stubContract{}, failures: 1}
	g := NewGateway(GatewayConfig{
		Detector: func() bool { return true },
		Dialer:   dialer,
		Logger:   zerolog.Nop(),
	})

	_, err := g.ResolveProviders(context.Background())
	require.Error(t, err)

	_, err = g.ResolveProviders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), dialer.dials.Load())
}

func TestResolveContractWorksWithoutWallet(t *testing.T) {
	dialer := &countingDialer{contract: &stubContract{}}
	g := NewGateway(GatewayConfig{Dialer: dialer, Logger: zerolog.Nop()})

	c1, err := g.ResolveContract(context.Background())
	require.NoError(t, err)
	c2, err := g.ResolveContract(context.Background())
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, int32(1), dialer.readOnly.Load())
}

func TestJackpotFeedReplacesContractNotifications(t *testing.T) {
	contract := &stubContract{}
	feed := &stubFeed{}
	g := NewGateway(GatewayConfig{
		Dialer:      &countingDialer{contract: contract},
		JackpotFeed: feed,
		Logger:      zerolog.Nop(),
	})

	c, err := g.ResolveContract(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.WatchJackpot(context.Background(), func(*big.Int) {}))

	assert.Equal(t, int32(1), feed.watched.Load())
	assert.Zero(t, contract.watched.Load())
}

func TestDetectFromConfig(t *testing.T) {
	assert.False(t, DetectFromConfig(config.WalletConfig{})())
	assert.True(t, DetectFromConfig(config.WalletConfig{RPCURL: "http://localhost:8545"})())
}
