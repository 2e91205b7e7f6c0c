package jackpot

import (
	"context"
	stderrors "errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/donnyesq/gamble/errors"
	"github.com/donnyesq/gamble/pkg/providers"
	"github.com/donnyesq/gamble/state"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContract struct {
	providers.Contract

	jackpot  *big.Int
	fetchErr error
	watchErr error

	mu      sync.Mutex
	handler func(*big.Int)
}

func (c *fakeContract) CurrentJackpot(ctx context.Context) (*big.Int, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.jackpot, nil
}

func (c *fakeContract) WatchJackpot(ctx context.Context, handler func(*big.Int)) error {
	if c.watchErr != nil {
		return c.watchErr
	}
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
	return nil
}

func (c *fakeContract) notify(v int64) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(big.NewInt(v))
}

type fakeResolver struct {
	contract providers.Contract
	err      error
}

func (r fakeResolver) ResolveContract(ctx context.Context) (providers.Contract, error) {
	return r.contract, r.err
}

func newStore(t *testing.T) *state.Store {
	t.Helper()
	s := state.NewStore(zerolog.Nop())
	t.Cleanup(s.Close)
	return s
}

func TestStartSetsJackpot(t *testing.T) {
	store := newStore(t)
	contract := &fakeContract{jackpot: big.NewInt(42)}

	NewWatcher(fakeResolver{contract: contract}, store, zerolog.Nop()).Start(context.Background())

	snap := store.Snapshot()
	assert.Equal(t, int64(42), snap.Jackpot.Int64())
	assert.Nil(t, snap.Err)
}

func TestNotificationsUpdateJackpot(t *testing.T) {
	store := newStore(t)
	contract := &fakeContract{jackpot: big.NewInt(1)}
	NewWatcher(fakeResolver{contract: contract}, store, zerolog.Nop()).Start(context.Background())

	contract.notify(5)
	contract.notify(5)

	assert.Equal(t, int64(5), store.Snapshot().Jackpot.Int64())
}

func TestFetchFailureStillRegistersStream(t *testing.T) {
	store := newStore(t)
	contract := &fakeContract{fetchErr: stderrors.New("rpc down")}

	NewWatcher(fakeResolver{contract: contract}, store, zerolog.Nop()).Start(context.Background())

	snap := store.Snapshot()
	require.NotNil(t, snap.Err)
	assert.Equal(t, errors.ErrRemoteCallFailure, snap.Err.Code)

	contract.notify(900)
	assert.Equal(t, int64(900), store.Snapshot().Jackpot.Int64())
}

func TestWatchFailureIsCaptured(t *testing.T) {
	store := newStore(t)
	contract := &fakeContract{jackpot: big.NewInt(3), watchErr: stderrors.New("filter not supported")}

	NewWatcher(fakeResolver{contract: contract}, store, zerolog.Nop()).Start(context.Background())

	snap := store.Snapshot()
	assert.Equal(t, int64(3), snap.Jackpot.Int64())
	require.NotNil(t, snap.Err)
	assert.Equal(t, errors.ErrRemoteCallFailure, snap.Err.Code)
}

func TestResolveFailureIsCaptured(t *testing.T) {
	store := newStore(t)

	NewWatcher(fakeResolver{err: stderrors.New("no endpoint")}, store, zerolog.Nop()).Start(context.Background())

	snap := store.Snapshot()
	require.NotNil(t, snap.Err)
	assert.Equal(t, errors.ErrProviderUnavailable, snap.Err.Code)
}

func TestSubscribersSeeEveryUpdate(t *testing.T) {
	store := newStore(t)
	contract := &fakeContract{jackpot: big.NewInt(1)}

	got := make(chan int64, 8)
	sub := store.Subscribe(func(s state.Snapshot) { got <- s.Jackpot.Int64() })
	defer sub.Unsubscribe()

	NewWatcher(fakeResolver{contract: contract}, store, zerolog.Nop()).Start(context.Background())
	contract.notify(2)

	var seen []int64
	for len(seen) < 3 {
		select {
		case v := <-got:
			seen = append(seen, v)
		case <-time.After(2 * time.Second):
			t.Fatalf("only saw %v", seen)
		}
	}
	assert.Equal(t, []int64{0, 1, 2}, seen)
}
