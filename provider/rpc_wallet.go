package provider

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/donnyesq/gamble/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var errNoAccounts = stderrors.New("wallet exposes no accounts")

// RPCCaller is the subset of *rpc.Client the wallet needs.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// BalanceReader is the subset of *ethclient.Client the wallet needs.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// RPCWallet is a wallet reached over JSON-RPC (a local node, Clef, Frame...).
type RPCWallet struct {
	rpc          RPCCaller
	eth          BalanceReader
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewRPCWallet creates a wallet. pollInterval drives account-change detection.
func NewRPCWallet(rpc RPCCaller, eth BalanceReader, pollInterval time.Duration, logger zerolog.Logger) *RPCWallet {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &RPCWallet{
		rpc:          rpc,
		eth:          eth,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "rpc_wallet").Logger(),
	}
}

func (w *RPCWallet) accounts(ctx context.Context) ([]string, error) {
	var accounts []common.Address
	if err := w.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return lo.Map(accounts, func(a common.Address, _ int) string { return a.Hex() }), nil
}

// Address returns the first authorized account.
func (w *RPCWallet) Address(ctx context.Context) (string, error) {
	accounts, err := w.accounts(ctx)
	if err != nil {
		return "", errors.RemoteCall(err, "failed to read signer")
	}
	if len(accounts) == 0 {
		return "", errors.NoSignerAvailable(errNoAccounts)
	}
	return accounts[0], nil
}

// BalanceAt returns the latest balance of address in wei.
func (w *RPCWallet) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	balance, err := w.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// SubscribeAccountsChanged polls eth_accounts and reports every change.
// JSON-RPC wallets have no push notification for this.
func (w *RPCWallet) SubscribeAccountsChanged(ctx context.Context, handler func([]string)) error {
	last, err := w.accounts(ctx)
	if err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				current, err := w.accounts(ctx)
				if err != nil {
					w.logger.Debug().Err(err).Msg("Account poll failed")
					continue
				}
				if slices.Equal(current, last) {
					continue
				}
				last = current
				w.logger.Debug().Int("accounts", len(current)).Msg("Accounts changed")
				handler(current)
			}
		}
	}()
	return nil
}

// Request issues a raw wallet call and discards the result.
func (w *RPCWallet) Request(ctx context.Context, method string, params ...any) error {
	var raw json.RawMessage
	if err := w.rpc.CallContext(ctx, &raw, method, params...); err != nil {
		return fmt.Errorf("wallet request %s failed: %w", method, err)
	}
	return nil
}

// SendTransaction asks the wallet to sign and broadcast a transaction.
func (w *RPCWallet) SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error) {
	tx := map[string]interface{}{
		"from": msg.From,
		"data": hexutil.Bytes(msg.Data),
	}
	if msg.To != nil {
		tx["to"] = msg.To
	}
	if msg.Value != nil {
		tx["value"] = (*hexutil.Big)(msg.Value)
	}
	if msg.Gas != 0 {
		tx["gas"] = hexutil.Uint64(msg.Gas)
	}

	var hash common.Hash
	if err := w.rpc.CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return hash, nil
}
