package kafka

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{msgs: make(chan kafka.Message, 16)}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) push(offset int64, value string) {
	r.msgs <- kafka.Message{Offset: offset, Value: []byte(value)}
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestJackpotFeedDeliversUpdates(t *testing.T) {
	reader := newFakeReader()
	feed := NewJackpotFeedWithReader(reader, zerolog.Nop())
	defer feed.Stop() //nolint:errcheck

	got := make(chan *big.Int, 4)
	require.NoError(t, feed.WatchJackpot(context.Background(), func(v *big.Int) { got <- v }))

	reader.push(1, `{"jackpot":"1000000000000000000000","timestamp":"2024-01-01T00:00:00Z"}`)
	reader.push(2, `not json`)
	reader.push(3, `{"jackpot":"-1"}`)
	reader.push(4, `{"jackpot":"5"}`)

	select {
	case v := <-got:
		assert.Equal(t, "1000000000000000000000", v.String())
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}
	select {
	case v := <-got:
		assert.Equal(t, int64(5), v.Int64())
	case <-time.After(2 * time.Second):
		t.Fatal("no second update delivered")
	}

	assert.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 4
	}, 2*time.Second, 5*time.Millisecond)
}

func TestJackpotFeedDropsHandlerWhenContextEnds(t *testing.T) {
	reader := newFakeReader()
	feed := NewJackpotFeedWithReader(reader, zerolog.Nop())
	defer feed.Stop() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, feed.WatchJackpot(ctx, func(*big.Int) {}))
	cancel()

	assert.Eventually(t, func() bool {
		feed.mu.RLock()
		defer feed.mu.RUnlock()
		return len(feed.handlers) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestJackpotFeedStop(t *testing.T) {
	reader := newFakeReader()
	feed := NewJackpotFeedWithReader(reader, zerolog.Nop())
	require.NoError(t, feed.WatchJackpot(context.Background(), func(*big.Int) {}))

	require.NoError(t, feed.Stop())
	assert.True(t, reader.closed)
	assert.Error(t, feed.WatchJackpot(context.Background(), func(*big.Int) {}))
}

func TestPublisherWritesEvents(t *testing.T) {
	writer := &fakeWriter{}
	p := NewJackpotPublisherWithWriter(writer, "lotto.jackpot", zerolog.Nop())

	require.NoError(t, p.PublishJackpot(big.NewInt(10)))
	require.NoError(t, p.PublishJackpot(big.NewInt(20)))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	require.Len(t, writer.msgs, 2)
	assert.True(t, writer.closed)
	assert.Equal(t, "lotto.jackpot", writer.msgs[0].Topic)

	var event JackpotEvent
	require.NoError(t, json.Unmarshal(writer.msgs[1].Value, &event))
	amount, err := event.Amount()
	require.NoError(t, err)
	assert.Equal(t, int64(20), amount.Int64())
}
