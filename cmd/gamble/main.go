package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/donnyesq/gamble/config"
	"github.com/donnyesq/gamble/lottery"
	"github.com/donnyesq/gamble/server"
	"github.com/donnyesq/gamble/state"
	appwire "github.com/donnyesq/gamble/wire"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// application is everything a command needs, built by initializeApplication.
type application struct {
	Config *config.Config
	Logger zerolog.Logger
	Client *lottery.Client
	App    *server.App
}

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "gamble",
		Short: "Lottery wallet and contract sync client",
		Long: `gamble keeps a local snapshot of the lottery contract and the user's
wallet in sync and exposes it to a UI over HTTP, SSE and WebSocket.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with the live snapshot",
		RunE:  runServe,
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every snapshot as JSON until interrupted",
		RunE:  runWatch,
	}
	watchCmd.Flags().Bool("publish", false, "Relay jackpot changes to the Kafka jackpot topic")

	betCmd := &cobra.Command{
		Use:   "bet <number>...",
		Short: "Place a bet with the given picks",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBet,
	}

	connectCmd := &cobra.Command{
		Use:   "connect",
		Short: "Ask the wallet for account access and reload the account",
		RunE:  runConnect,
	}

	onboardCmd := &cobra.Command{
		Use:   "onboard",
		Short: "Print the wallet onboarding URL",
		RunE:  runOnboard,
	}

	rootCmd.AddCommand(serveCmd, watchCmd, betCmd, connectCmd, onboardCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(cfg *config.Config) (*application, func(), error) {
	app, cleanup, err := initializeApplication(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return app, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, cleanup, err := build(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// Stop the watchers before the listener goes away
	app.App.OnShutdown(app.Client.Close)
	app.Client.Init(cmd.Context())
	return app.App.RunWithContext(cmd.Context())
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	publish, _ := cmd.Flags().GetBool("publish")

	// The relay reads jackpot changes from the contract, not from the topic
	// it writes to.
	clientCfg := cfg
	if publish {
		relayCfg := *cfg
		relayCfg.Kafka.Brokers = nil
		clientCfg = &relayCfg
	}

	app, cleanup, err := build(clientCfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var relay func(state.Snapshot)
	if publish {
		publisher, closePublisher, err := appwire.ProvideJackpotPublisher(cfg, app.Logger)
		if err != nil {
			return err
		}
		defer closePublisher()
		relay = jackpotRelay(publisher, app.Logger)
	}

	out := cmd.OutOrStdout()
	sub := app.Client.Subscribe(func(snap state.Snapshot) {
		if err := printView(out, snap); err != nil {
			app.Logger.Error().Err(err).Msg("Failed to print snapshot")
		}
		if relay != nil {
			relay(snap)
		}
	})
	defer sub.Unsubscribe()

	app.Client.Init(cmd.Context())
	<-cmd.Context().Done()
	return nil
}

type jackpotPublisher interface {
	PublishJackpot(jackpot *big.Int) error
}

// jackpotRelay publishes the jackpot each time it differs from the last
// published value. The zero jackpot of the initial snapshot is skipped.
func jackpotRelay(publisher jackpotPublisher, logger zerolog.Logger) func(state.Snapshot) {
	var last *big.Int
	return func(snap state.Snapshot) {
		if snap.Jackpot == nil {
			return
		}
		if last == nil && snap.Jackpot.Sign() == 0 {
			return
		}
		if last != nil && last.Cmp(snap.Jackpot) == 0 {
			return
		}
		if err := publisher.PublishJackpot(snap.Jackpot); err != nil {
			logger.Error().Err(err).Msg("Failed to publish jackpot")
			return
		}
		last = new(big.Int).Set(snap.Jackpot)
	}
}

func runBet(cmd *cobra.Command, args []string) error {
	numbers, err := parseNumbers(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, cleanup, err := build(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	app.Client.Init(cmd.Context())
	app.Client.Ready()

	if err := app.Client.Buy(cmd.Context(), numbers); err != nil {
		return err
	}
	return printView(cmd.OutOrStdout(), app.Client.Snapshot())
}

func parseNumbers(args []string) ([]*big.Int, error) {
	numbers := lo.Map(args, func(arg string, _ int) *big.Int {
		n, ok := new(big.Int).SetString(arg, 10)
		if !ok || n.Sign() <= 0 {
			return nil
		}
		return n
	})
	if lo.Contains(numbers, nil) {
		return nil, fmt.Errorf("picks must be positive integers, got %v", args)
	}
	return numbers, nil
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, cleanup, err := build(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	app.Client.Init(cmd.Context())
	app.Client.Ready()

	if err := app.Client.ConnectWallet(cmd.Context()); err != nil {
		return err
	}
	return printView(cmd.OutOrStdout(), app.Client.Snapshot())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cfg.OnboardingURL)
	return nil
}

func printView(w io.Writer, snap state.Snapshot) error {
	return json.NewEncoder(w).Encode(snap.View())
}
