package wire

import (
	"fmt"

	"github.com/donnyesq/gamble/config"
	"github.com/donnyesq/gamble/events/kafka"
	"github.com/donnyesq/gamble/logging"
	"github.com/donnyesq/gamble/lottery"
	"github.com/donnyesq/gamble/pkg/session"
	"github.com/donnyesq/gamble/provider"
	"github.com/donnyesq/gamble/server"
	"github.com/donnyesq/gamble/state"
	"github.com/google/wire"
	"github.com/rs/zerolog"
)

// ProvideLogger provides a zerolog.Logger
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Logging)
}

// ProvideJackpotFeed provides the Kafka jackpot feed. It returns nil when no
// jackpot topic is configured.
func ProvideJackpotFeed(cfg *config.Config, logger zerolog.Logger) (*kafka.JackpotFeed, func()) {
	if !cfg.Kafka.Enabled() {
		return nil, func() {}
	}
	feed := kafka.NewJackpotFeed(kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.JackpotTopic(),
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
		Logger:        logger,
	})
	return feed, func() {
		_ = feed.Stop()
	}
}

// ProvideGateway provides the wallet/contract gateway
func ProvideGateway(cfg *config.Config, logger zerolog.Logger, feed *kafka.JackpotFeed) *provider.Gateway {
	gwCfg := provider.GatewayConfig{
		Detector: provider.DetectFromConfig(cfg.Wallet),
		Dialer:   provider.NewEthDialer(cfg, logger),
		Logger:   logger,
	}
	if feed != nil {
		gwCfg.JackpotFeed = feed
	}
	return provider.NewGateway(gwCfg)
}

// ProvideStore provides the snapshot store
func ProvideStore(logger zerolog.Logger) *state.Store {
	return state.NewStore(logger)
}

// ProvideSessionSync provides the session side-channel mirror
func ProvideSessionSync(cfg *config.Config, logger zerolog.Logger) *session.Sync {
	return session.New(session.Config{
		BaseURL: cfg.Session.BaseURL,
		Timeout: cfg.Session.Timeout,
		Logger:  logger,
	})
}

// ProvideClient provides the lottery client. The cleanup closes it.
func ProvideClient(
	cfg *config.Config,
	logger zerolog.Logger,
	gateway *provider.Gateway,
	store *state.Store,
	sync *session.Sync,
) (*lottery.Client, func()) {
	client := lottery.New(lottery.Config{
		Gateway:       gateway,
		Store:         store,
		Session:       sync,
		OnboardingURL: cfg.OnboardingURL,
		Logger:        logger,
	})
	return client, client.Close
}

// ProvideJackpotPublisher provides the Kafka jackpot publisher
func ProvideJackpotPublisher(cfg *config.Config, logger zerolog.Logger) (*kafka.JackpotPublisher, func(), error) {
	if !cfg.Kafka.Enabled() {
		return nil, nil, fmt.Errorf("kafka jackpot topic not configured")
	}
	publisher := kafka.NewJackpotPublisher(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.JackpotTopic(),
		Logger:  logger,
	})
	return publisher, func() {
		_ = publisher.Close()
	}, nil
}

// ProvideServerOptions provides server options
func ProvideServerOptions(cfg *config.Config, logger zerolog.Logger, client *lottery.Client) server.Options {
	return server.Options{
		Config: cfg,
		Logger: logger,
		Client: client,
	}
}

// ProvideApp provides the main application with every route registered
func ProvideApp(opts server.Options) *server.App {
	return server.New(opts).Setup()
}

// LoggingSet is the wire provider set for logging
var LoggingSet = wire.NewSet(
	ProvideLogger,
)

// ProviderSet is the wire provider set for the wallet, contract and jackpot feed
var ProviderSet = wire.NewSet(
	ProvideJackpotFeed,
	ProvideGateway,
)

// ClientSet is the wire provider set for the lottery client
var ClientSet = wire.NewSet(
	ProvideStore,
	ProvideSessionSync,
	ProvideClient,
)

// ServerSet is the wire provider set for server
var ServerSet = wire.NewSet(
	ProvideServerOptions,
	ProvideApp,
)

// DefaultSet is the default wire provider set including all common providers
var DefaultSet = wire.NewSet(
	LoggingSet,
	ProviderSet,
	ClientSet,
	ServerSet,
)
