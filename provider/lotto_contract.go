package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/donnyesq/gamble/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// BetSize is the number of picks in one bet.
const BetSize = 6

// lottoABI describes the lottery contract surface the client uses.
const lottoABI = `[
	{"inputs": [], "name": "getCurrentJackpot", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "getBets", "outputs": [{"name": "", "type": "uint256[6][]"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "numbers", "type": "uint256[6]"}], "name": "bet", "outputs": [], "stateMutability": "payable", "type": "function"},
	{"anonymous": false, "inputs": [{"indexed": false, "name": "jackpot", "type": "uint256"}], "name": "jackpotUpdated", "type": "event"}
]`

const jackpotUpdatedEvent = "jackpotUpdated"

// ContractBackend is the subset of *ethclient.Client the contract needs.
type ContractBackend interface {
	ethereum.ContractCaller
	ethereum.LogFilterer
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// TxSender signs and broadcasts on behalf of the user.
type TxSender interface {
	Address(ctx context.Context) (string, error)
	SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error)
}

// LottoConfig configures a LottoContract.
type LottoConfig struct {
	Address             common.Address
	Backend             ContractBackend
	Sender              TxSender // nil for a read-only contract
	ReceiptPollInterval time.Duration
	LogPollInterval     time.Duration
	Logger              zerolog.Logger
}

// LottoContract implements providers.Contract on top of go-ethereum.
type LottoContract struct {
	address      common.Address
	abi          abi.ABI
	backend      ContractBackend
	sender       TxSender
	receiptEvery time.Duration
	logEvery     time.Duration
	logger       zerolog.Logger
}

// NewLottoContract binds the lottery ABI to address.
func NewLottoContract(cfg LottoConfig) (*LottoContract, error) {
	if cfg.Address == (common.Address{}) {
		return nil, stderrors.New("lottery contract address not configured")
	}
	parsed, err := abi.JSON(strings.NewReader(lottoABI))
	if err != nil {
		return nil, fmt.Errorf("parse lottery ABI: %w", err)
	}
	receiptEvery := cfg.ReceiptPollInterval
	if receiptEvery <= 0 {
		receiptEvery = 2 * time.Second
	}
	logEvery := cfg.LogPollInterval
	if logEvery <= 0 {
		logEvery = 4 * time.Second
	}
	return &LottoContract{
		address:      cfg.Address,
		abi:          parsed,
		backend:      cfg.Backend,
		sender:       cfg.Sender,
		receiptEvery: receiptEvery,
		logEvery:     logEvery,
		logger:       cfg.Logger.With().Str("component", "lotto_contract").Str("contract", cfg.Address.Hex()).Logger(),
	}, nil
}

func (c *LottoContract) call(ctx context.Context, from common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From: from,
		To:   &c.address,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return values, nil
}

// CurrentJackpot reads the prize pool.
func (c *LottoContract) CurrentJackpot(ctx context.Context) (*big.Int, error) {
	values, err := c.call(ctx, common.Address{}, "getCurrentJackpot")
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(values[0], new(big.Int)).(*big.Int), nil
}

func (c *LottoContract) from(ctx context.Context) (common.Address, error) {
	if c.sender == nil {
		return common.Address{}, errors.ProviderUnavailable()
	}
	addr, err := c.sender.Address(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(addr), nil
}

// Bets returns the caller's bets, oldest first.
func (c *LottoContract) Bets(ctx context.Context) ([][]*big.Int, error) {
	from, err := c.from(ctx)
	if err != nil {
		return nil, err
	}
	values, err := c.call(ctx, from, "getBets")
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(values[0], new([][BetSize]*big.Int)).(*[][BetSize]*big.Int)
	return lo.Map(raw, func(bet [BetSize]*big.Int, _ int) []*big.Int {
		return bet[:]
	}), nil
}

// Bet submits numbers with value attached and waits for the receipt. ctx
// bounds the submission only; the receipt wait ignores its cancellation.
func (c *LottoContract) Bet(ctx context.Context, numbers []*big.Int, value *big.Int) error {
	if len(numbers) != BetSize {
		return fmt.Errorf("bet needs %d numbers, got %d", BetSize, len(numbers))
	}
	var picks [BetSize]*big.Int
	copy(picks[:], numbers)

	from, err := c.from(ctx)
	if err != nil {
		return err
	}
	data, err := c.abi.Pack("bet", picks)
	if err != nil {
		return fmt.Errorf("pack bet: %w", err)
	}

	hash, err := c.sender.SendTransaction(ctx, ethereum.CallMsg{
		From:  from,
		To:    &c.address,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return err
	}

	// Once sent the bet is on chain whatever the caller does; wait it out
	c.logger.Debug().Str("tx_hash", hash.Hex()).Msg("Bet transaction submitted")
	return c.waitMined(context.WithoutCancel(ctx), hash)
}

func (c *LottoContract) waitMined(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(c.receiptEvery)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("bet transaction %s reverted", hash.Hex())
			}
			return nil
		case !stderrors.Is(err, ethereum.NotFound):
			return fmt.Errorf("get receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WatchJackpot streams jackpotUpdated events. Endpoints without
// subscriptions (plain HTTP) are polled instead.
func (c *LottoContract) WatchJackpot(ctx context.Context, handler func(*big.Int)) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{c.abi.Events[jackpotUpdatedEvent].ID}},
	}

	logs := make(chan types.Log, 16)
	sub, err := c.backend.SubscribeFilterLogs(ctx, query, logs)
	if stderrors.Is(err, rpc.ErrNotificationsUnsupported) {
		return c.pollJackpot(ctx, query, handler)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", jackpotUpdatedEvent, err)
	}

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					c.logger.Error().Err(err).Msg("Jackpot subscription dropped")
				}
				return
			case l := <-logs:
				c.dispatch(l, handler)
			}
		}
	}()
	return nil
}

func (c *LottoContract) pollJackpot(ctx context.Context, query ethereum.FilterQuery, handler func(*big.Int)) error {
	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("read head block: %w", err)
	}
	next := head + 1

	go func() {
		ticker := time.NewTicker(c.logEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			head, err := c.backend.BlockNumber(ctx)
			if err != nil {
				c.logger.Debug().Err(err).Msg("Head poll failed")
				continue
			}
			if head < next {
				continue
			}

			q := query
			q.FromBlock = new(big.Int).SetUint64(next)
			q.ToBlock = new(big.Int).SetUint64(head)
			logs, err := c.backend.FilterLogs(ctx, q)
			if err != nil {
				c.logger.Debug().Err(err).Uint64("from", next).Uint64("to", head).Msg("Log poll failed")
				continue
			}
			for _, l := range logs {
				c.dispatch(l, handler)
			}
			next = head + 1
		}
	}()
	return nil
}

func (c *LottoContract) dispatch(l types.Log, handler func(*big.Int)) {
	if l.Removed {
		return
	}
	jackpot, err := c.parseJackpot(l)
	if err != nil {
		c.logger.Warn().Err(err).Str("tx_hash", l.TxHash.Hex()).Msg("Skipping malformed jackpot event")
		return
	}
	handler(jackpot)
}

func (c *LottoContract) parseJackpot(l types.Log) (*big.Int, error) {
	values, err := c.abi.Unpack(jackpotUpdatedEvent, l.Data)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, stderrors.New("empty jackpot event")
	}
	return abi.ConvertType(values[0], new(big.Int)).(*big.Int), nil
}
