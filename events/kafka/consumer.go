package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// JackpotEvent is the message carried on the jackpot topic. Jackpot is a
// decimal wei string so uint256 values survive JSON.
type JackpotEvent struct {
	Jackpot   string    `json:"jackpot"`
	Timestamp time.Time `json:"timestamp"`
}

// Amount parses the jackpot value.
func (e JackpotEvent) Amount() (*big.Int, error) {
	v, ok := new(big.Int).SetString(e.Jackpot, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid jackpot %q", e.Jackpot)
	}
	return v, nil
}

// MessageReader is the part of kafka.Reader the feed uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	Logger        zerolog.Logger
}

// JackpotFeed reads jackpot updates from Kafka and hands them to every
// registered watcher. It stands in for contract log notifications.
type JackpotFeed struct {
	reader MessageReader
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once

	mu       sync.RWMutex
	handlers map[string]func(*big.Int)
}

// NewJackpotFeed creates a feed reading from the configured topic.
func NewJackpotFeed(config ConsumerConfig) *JackpotFeed {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	return NewJackpotFeedWithReader(reader, config.Logger)
}

// NewJackpotFeedWithReader creates a feed over an existing reader.
func NewJackpotFeedWithReader(reader MessageReader, logger zerolog.Logger) *JackpotFeed {
	ctx, cancel := context.WithCancel(context.Background())
	return &JackpotFeed{
		reader:   reader,
		logger:   logger.With().Str("component", "kafka-jackpot-feed").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[string]func(*big.Int)),
	}
}

// WatchJackpot registers handler until ctx is done. The consumer loop starts
// with the first registration.
func (f *JackpotFeed) WatchJackpot(ctx context.Context, handler func(*big.Int)) error {
	if f.ctx.Err() != nil {
		return stderrors.New("jackpot feed stopped")
	}

	id := uuid.New().String()
	f.mu.Lock()
	f.handlers[id] = handler
	f.mu.Unlock()

	f.start.Do(func() {
		f.wg.Add(1)
		go f.consume()
		f.logger.Info().Msg("Kafka jackpot feed started")
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-f.ctx.Done():
		}
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}()
	return nil
}

// Stop gracefully stops the consumer
func (f *JackpotFeed) Stop() error {
	f.logger.Info().Msg("Stopping Kafka jackpot feed...")
	f.cancel()
	f.wg.Wait()

	if err := f.reader.Close(); err != nil {
		f.logger.Error().Err(err).Msg("Error closing Kafka reader")
		return err
	}
	return nil
}

func (f *JackpotFeed) consume() {
	defer f.wg.Done()

	for {
		msg, err := f.reader.FetchMessage(f.ctx)
		if err != nil {
			if f.ctx.Err() != nil {
				return
			}
			f.logger.Error().Err(err).Msg("Error fetching message from Kafka")
			select {
			case <-f.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := f.handleMessage(msg); err != nil {
			f.logger.Error().
				Err(err).
				Str("topic", msg.Topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Error handling message")
		}

		if err := f.reader.CommitMessages(f.ctx, msg); err != nil && f.ctx.Err() == nil {
			f.logger.Error().Err(err).Msg("Error committing message")
		}
	}
}

func (f *JackpotFeed) handleMessage(msg kafka.Message) error {
	var event JackpotEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}
	amount, err := event.Amount()
	if err != nil {
		return err
	}

	f.mu.RLock()
	handlers := make([]func(*big.Int), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		h(new(big.Int).Set(amount))
	}
	return nil
}
