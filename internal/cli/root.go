package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"
	"github.com/vietddude/walletsync/internal/control"
	"github.com/vietddude/walletsync/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
	signIn  string
)

var rootCmd = &cobra.Command{
	Use:   "walletd",
	Short: "Flow wallet account and transaction sync service",
	Long: `walletd keeps a signed-in Flow wallet in sync: it discovers the accounts
behind a public key, loads token and NFT holdings per account, and follows
submitted transactions until they are sealed.`,
	Run: runWallet,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the wallet services (default command)",
	Run:   runWallet,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().StringVar(&signIn, "uid", "", "sign in this user on startup")
	}
	rootCmd.AddCommand(runCmd)
}

// setup loads .env and the config file and installs the default logger.
func setup() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	if cfg.Logging.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
		return cfg
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

// newApp builds the service graph or exits.
func newApp(ctx context.Context) *control.App {
	cfg := setup()
	app, err := control.New(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize wallet services", "error", err)
		os.Exit(1)
	}
	return app
}

func runWallet(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := newApp(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start wallet services", "error", err)
		os.Exit(1)
	}

	slog.Info("walletd started", "config", cfgPath)

	if signIn != "" {
		go func() {
			if err := app.Wallet.SignIn(ctx, signIn); err != nil {
				slog.Error("Sign in failed", "uid", signIn, "error", err)
			}
		}()
	}

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
