package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig holds configuration for Kafka producer
type ProducerConfig struct {
	Brokers []string
	Topic   string
	Logger  zerolog.Logger
}

// JackpotPublisher relays jackpot values onto the jackpot topic. Publishing
// is asynchronous and ordered: a single worker drains the queue.
type JackpotPublisher struct {
	writer MessageWriter
	topic  string
	logger zerolog.Logger
	jobs   chan kafka.Message
	wg     sync.WaitGroup
	once   sync.Once
}

// NewJackpotPublisher creates a publisher writing to the configured brokers.
func NewJackpotPublisher(config ProducerConfig) *JackpotPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	return NewJackpotPublisherWithWriter(writer, config.Topic, config.Logger)
}

// NewJackpotPublisherWithWriter creates a publisher over an existing writer.
func NewJackpotPublisherWithWriter(writer MessageWriter, topic string, logger zerolog.Logger) *JackpotPublisher {
	p := &JackpotPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.With().Str("component", "kafka-producer").Logger(),
		jobs:   make(chan kafka.Message, 100),
	}
	p.wg.Add(1)
	go p.worker()
	return p
}

func (p *JackpotPublisher) worker() {
	defer p.wg.Done()
	for msg := range p.jobs {
		func() {
			defer p.recover()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				p.logger.Error().
					Err(err).
					Str("topic", msg.Topic).
					Msg("Failed to send message to Kafka")
				return
			}
			p.logger.Debug().
				Str("topic", msg.Topic).
				Str("jackpot", string(msg.Key)).
				Msg("Message sent to Kafka")
		}()
	}
}

// PublishJackpot queues a jackpot update.
func (p *JackpotPublisher) PublishJackpot(jackpot *big.Int) error {
	event := JackpotEvent{Jackpot: jackpot.String(), Timestamp: time.Now().UTC()}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.jobs <- kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Jackpot),
		Value: payload,
		Time:  event.Timestamp,
	}
	return nil
}

// Close flushes queued messages and closes the writer.
func (p *JackpotPublisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.jobs)
		p.wg.Wait()
		if err = p.writer.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Error closing Kafka producer")
		}
	})
	return err
}

func (p *JackpotPublisher) recover() {
	if r := recover(); r != nil {
		p.logger.Error().
			Str("operation", "send_message_kafka").
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack_trace", string(debug.Stack())).
			Msg("Panic recovered")
	}
}
