package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/donnyesq/gamble/logging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultOnboardingURL is where users without a wallet are sent.
const DefaultOnboardingURL = "https://metamask.io/download/"

// Config holds all application configuration
type Config struct {
	Environment   string         `mapstructure:"environment"`
	Server        ServerConfig   `mapstructure:"server"`
	Logging       logging.Config `mapstructure:"logging"`
	Wallet        WalletConfig   `mapstructure:"wallet"`
	Chain         ChainConfig    `mapstructure:"chain"`
	Session       SessionConfig  `mapstructure:"session"`
	Kafka         KafkaConfig    `mapstructure:"kafka"`
	OnboardingURL string         `mapstructure:"onboarding_url"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	EnableCORS   bool          `mapstructure:"enable_cors"`

	// RequestTimeout bounds the short JSON routes (session cookie, state).
	// Bets and wallet prompts are not bounded by it.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// WalletConfig points at the user's wallet endpoint. An empty RPCURL means
// no wallet is present.
type WalletConfig struct {
	RPCURL       string        `mapstructure:"rpc_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ChainConfig holds the public chain endpoint and the lottery contract.
type ChainConfig struct {
	RPCURL              string         `mapstructure:"rpc_url"`
	LottoAddress        common.Address `mapstructure:"lotto_address"`
	ReceiptPollInterval time.Duration  `mapstructure:"receipt_poll_interval"`
	LogPollInterval     time.Duration  `mapstructure:"log_poll_interval"`
}

// SessionConfig holds the side-channel endpoint that mirrors the address cookie.
type SessionConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers       []string          `mapstructure:"brokers"`
	ConsumerGroup string            `mapstructure:"consumer_group"`
	Topics        map[string]string `mapstructure:"topics"`
}

// JackpotTopic returns the topic carrying jackpot updates, if any.
func (k KafkaConfig) JackpotTopic() string {
	return k.Topics["jackpot"]
}

// Enabled reports whether a jackpot feed should be read from Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.JackpotTopic() != ""
}

// Load loads configuration from YAML file using Viper
func Load(filename string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(filename)
	v.SetConfigType("yaml")

	// Enable environment variable substitution
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return decode(v)
}

// LoadByEnv loads configuration based on environment using Viper
func LoadByEnv(configDir string) (*Config, error) {
	v := viper.New()

	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	env := v.GetString("ENV")
	if env == "" {
		env = v.GetString("APP_ENV")
	}
	if env == "" {
		env = "development"
	}

	v.SetConfigName(fmt.Sprintf("config-%s", env))
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToAddressHook,
	))
	if err := v.Unmarshal(&config, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.setDefaults()

	return &config, nil
}

var addressType = reflect.TypeOf(common.Address{})

// stringToAddressHook parses hex strings into common.Address and rejects
// anything that is not a valid address.
func stringToAddressHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != addressType {
		return data, nil
	}
	s := data.(string)
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return nil, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Wallet.PollInterval == 0 {
		c.Wallet.PollInterval = time.Second
	}
	if c.Chain.RPCURL == "" {
		c.Chain.RPCURL = c.Wallet.RPCURL
	}
	if c.Chain.ReceiptPollInterval == 0 {
		c.Chain.ReceiptPollInterval = 2 * time.Second
	}
	if c.Chain.LogPollInterval == 0 {
		c.Chain.LogPollInterval = 4 * time.Second
	}
	if c.Session.Timeout == 0 {
		c.Session.Timeout = 5 * time.Second
	}
	if c.Session.BaseURL == "" {
		c.Session.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "gamble-client"
	}
	if c.OnboardingURL == "" {
		c.OnboardingURL = DefaultOnboardingURL
	}
}

// Default returns a configuration with every default applied, for callers that
// run without a config file.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
