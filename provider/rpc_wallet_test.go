package provider

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/donnyesq/gamble/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRPC struct {
	mu        sync.Mutex
	responses map[string]interface{}
	errs      map[string]error
	calls     map[string][][]interface{}
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		responses: map[string]interface{}{},
		errs:      map[string]error{},
		calls:     map[string][][]interface{}{},
	}
}

func (f *fakeRPC) set(method string, v interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method] = v
}

func (f *fakeRPC) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method] = append(f.calls[method], args)
	if err := f.errs[method]; err != nil {
		return err
	}
	raw, err := json.Marshal(f.responses[method])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

type fakeBalances map[common.Address]*big.Int

func (b fakeBalances) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	v, ok := b[account]
	if !ok {
		return nil, stderrors.New("unknown account")
	}
	return v, nil
}

const addrA = "0x00000000000000000000000000000000000000aA"

func TestAddressReturnsFirstAccount(t *testing.T) {
	rpc := newFakeRPC()
	rpc.set("eth_accounts", []string{addrA, "0x00000000000000000000000000000000000000bb"})
	w := NewRPCWallet(rpc, fakeBalances{}, 0, zerolog.Nop())

	got, err := w.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(addrA).Hex(), got)
}

func TestAddressLockedWallet(t *testing.T) {
	rpc := newFakeRPC()
	rpc.set("eth_accounts", []string{})
	w := NewRPCWallet(rpc, fakeBalances{}, 0, zerolog.Nop())

	_, err := w.Address(context.Background())
	assert.True(t, errors.Is(err, errors.ErrNoSignerAvailable))
}

func TestBalanceAt(t *testing.T) {
	w := NewRPCWallet(newFakeRPC(), fakeBalances{common.HexToAddress(addrA): big.NewInt(500)}, 0, zerolog.Nop())

	got, err := w.BalanceAt(context.Background(), addrA)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.Int64())

	_, err = w.BalanceAt(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSubscribeAccountsChangedReportsChanges(t *testing.T) {
	rpc := newFakeRPC()
	rpc.set("eth_accounts", []string{addrA})
	w := NewRPCWallet(rpc, fakeBalances{}, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []string, 4)
	require.NoError(t, w.SubscribeAccountsChanged(ctx, func(a []string) { got <- a }))

	rpc.set("eth_accounts", []string{})
	select {
	case accounts := <-got:
		assert.Empty(t, accounts)
	case <-time.After(2 * time.Second):
		t.Fatal("no account change reported")
	}
}

func TestRequestPassesMethod(t *testing.T) {
	rpc := newFakeRPC()
	rpc.set("eth_requestAccounts", []string{addrA})
	w := NewRPCWallet(rpc, fakeBalances{}, 0, zerolog.Nop())

	require.NoError(t, w.Request(context.Background(), "eth_requestAccounts"))
	assert.Len(t, rpc.calls["eth_requestAccounts"], 1)

	rpc.errs["wallet_switchEthereumChain"] = stderrors.New("unsupported")
	assert.Error(t, w.Request(context.Background(), "wallet_switchEthereumChain"))
}

func TestSendTransaction(t *testing.T) {
	rpc := newFakeRPC()
	rpc.set("eth_sendTransaction", "0x00000000000000000000000000000000000000000000000000000000000000ff")
	w := NewRPCWallet(rpc, fakeBalances{}, 0, zerolog.Nop())

	to := common.HexToAddress(addrA)
	hash, err := w.SendTransaction(context.Background(), ethereum.CallMsg{
		From:  to,
		To:    &to,
		Value: big.NewInt(1),
		Data:  []byte{0x01},
	})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xff"), hash)
	require.Len(t, rpc.calls["eth_sendTransaction"], 1)
}
