package provider

import (
	"context"
	"fmt"

	"github.com/donnyesq/gamble/config"
	"github.com/donnyesq/gamble/pkg/providers"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
)

// EthDialer builds capabilities from go-ethereum RPC clients.
type EthDialer struct {
	wallet config.WalletConfig
	chain  config.ChainConfig
	logger zerolog.Logger
}

// NewEthDialer creates a dialer for the configured endpoints.
func NewEthDialer(cfg *config.Config, logger zerolog.Logger) *EthDialer {
	return &EthDialer{
		wallet: cfg.Wallet,
		chain:  cfg.Chain,
		logger: logger,
	}
}

// Dial connects to the wallet endpoint and binds the contract to it so bets
// are signed by the wallet.
func (d *EthDialer) Dial(ctx context.Context) (providers.Providers, error) {
	client, err := rpc.DialContext(ctx, d.wallet.RPCURL)
	if err != nil {
		return providers.Providers{}, fmt.Errorf("dial wallet %s: %w", d.wallet.RPCURL, err)
	}
	eth := ethclient.NewClient(client)

	wallet := NewRPCWallet(client, eth, d.wallet.PollInterval, d.logger)
	contract, err := NewLottoContract(LottoConfig{
		Address:             d.chain.LottoAddress,
		Backend:             eth,
		Sender:              wallet,
		ReceiptPollInterval: d.chain.ReceiptPollInterval,
		LogPollInterval:     d.chain.LogPollInterval,
		Logger:              d.logger,
	})
	if err != nil {
		client.Close()
		return providers.Providers{}, err
	}

	return providers.Providers{Wallet: wallet, Contract: contract}, nil
}

// DialReadOnly connects to the public chain endpoint.
func (d *EthDialer) DialReadOnly(ctx context.Context) (providers.Contract, error) {
	if d.chain.RPCURL == "" {
		return nil, fmt.Errorf("chain rpc_url not configured")
	}
	eth, err := ethclient.DialContext(ctx, d.chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain %s: %w", d.chain.RPCURL, err)
	}

	contract, err := NewLottoContract(LottoConfig{
		Address:             d.chain.LottoAddress,
		Backend:             eth,
		ReceiptPollInterval: d.chain.ReceiptPollInterval,
		LogPollInterval:     d.chain.LogPollInterval,
		Logger:              d.logger,
	})
	if err != nil {
		eth.Close()
		return nil, err
	}
	return contract, nil
}
