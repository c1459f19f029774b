package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	cfg "github.com/fendi147258369-dot/omnisafe-web/backend/config"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/clients"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/storage"
)

var (
	cfgPath    string
	isDebug    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "omniscan",
	Short:         "OmniSafe token risk scanner",
	Long:          `omniscan submits tokens to the OmniSafe detection engine, follows the scan and shows the report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (TOML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON instead of tables")
}

// app bundles what every command needs.
type app struct {
	logger *slog.Logger
	config *cfg.Config
	store  storage.Store
	creds  *clients.Credentials
	api    *clients.OmniSafeClient
	close  func()
}

func newApp(ctx context.Context) (*app, error) {
	config, err := cfg.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	level := config.Log.Level
	if isDebug || config.App.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	store, closeStore, err := storage.Open(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	creds := clients.NewCredentials(store, config.API.AccessToken, config.API.AdminAccessToken)
	api := clients.NewOmniSafeClient(logger, creds, clients.Options{
		BaseURL:   config.API.BaseURL,
		Timeout:   config.API.Timeout(),
		RateLimit: config.API.RateLimit,
		RateBurst: config.API.RateBurst,
	})

	return &app{
		logger: logger,
		config: config,
		store:  store,
		creds:  creds,
		api:    api,
		close:  closeStore,
	}, nil
}

// withApp adapts a command body that needs an app.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return withAppCmd(func(ctx context.Context, _ *cobra.Command, a *app, args []string) error {
		return fn(ctx, a, args)
	})
}

// withAppCmd is withApp for bodies that inspect their own flags.
func withAppCmd(fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		return fn(ctx, cmd, a, args)
	}
}
