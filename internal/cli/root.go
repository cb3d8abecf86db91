// Package cli provides the command-line interface for the trading terminal.
package cli

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jinyang756/Wealthgather-exchange/internal/config"
	"github.com/jinyang756/Wealthgather-exchange/internal/identity"
	"github.com/jinyang756/Wealthgather-exchange/internal/logging"
	"github.com/jinyang756/Wealthgather-exchange/internal/market"
	"github.com/jinyang756/Wealthgather-exchange/internal/mirror"
	"github.com/jinyang756/Wealthgather-exchange/internal/models"
	"github.com/jinyang756/Wealthgather-exchange/internal/quote"
	"github.com/jinyang756/Wealthgather-exchange/internal/remote"
	"github.com/jinyang756/Wealthgather-exchange/internal/stream"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-08-20"
)

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Bus        *stream.Bus
	Identity   *identity.Manager
	Store      remote.Store
	Realtime   *remote.RealtimeFeed
	Reconciler *mirror.Reconciler
	Market     *market.Service
}

// buildApp wires the data core from configuration. The hosted realtime
// feed is only dialed by commands that need push invalidation; local
// mode delivers change events in-process.
func buildApp(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Bus:      stream.NewBus(),
		Identity: identity.NewManager(),
	}

	var feed remote.ChangeFeed
	switch cfg.Store.Mode {
	case "rest":
		app.Store = remote.NewRESTStore(remote.RESTConfig{
			BaseURL: cfg.Store.RestURL,
			APIKey:  cfg.Store.RestKey,
			Timeout: cfg.Store.RequestTimeout,
		}, logger)
		app.Realtime = remote.NewRealtimeFeed(remote.RealtimeConfig{
			URL:    cfg.Store.RealtimeURL,
			APIKey: cfg.Store.RestKey,
		}, logger)
		feed = app.Realtime
	default:
		store, err := remote.NewSQLiteStore(cfg.Store.SQLitePath, cfg.Trading.InitialCash)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		app.Store = store
		feed = store
	}

	app.Reconciler = mirror.New(app.Store, feed, app.Identity, app.Bus, cfg.Trading.InitialCash, logger)
	app.Market = market.NewService(market.Options{
		Config:     cfg.Market,
		Trading:    cfg.Trading,
		Bus:        app.Bus,
		Store:      app.Store,
		Reconciler: app.Reconciler,
		Feed: quote.NewClient(quote.ClientConfig{
			BaseURL: cfg.Market.FeedURL,
			Timeout: cfg.Market.RequestTimeout,
		}, logger),
		Logger: logger,
	})
	return app, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.Realtime != nil {
		if err := a.Realtime.Disconnect(); err != nil {
			a.Logger.Debug().Err(err).Msg("realtime disconnect failed")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("store close failed")
		}
	}
	a.Bus.Close()
}

// signIn resolves the --user flag into an identity. The terminal trusts
// the supplied id; authentication lives on the hosted backend.
func (a *App) signIn(cmd *cobra.Command) error {
	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return fmt.Errorf("sign in required: pass --user <id>")
	}
	a.Identity.SetUser(&models.User{ID: userID})
	return nil
}

// ConfigDirFromArgs extracts the --config flag value from raw arguments.
// Configuration is loaded before the command tree is constructed, so
// the flag has to be resolved ahead of cobra's own parsing.
func ConfigDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			return ""
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app, err := buildApp(cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "wgx",
		Short: "Wealthgather Exchange - market data and trading terminal core",
		Long: `Wealthgather Exchange keeps a local terminal synchronized with live
A-share quotes and a hosted account store.

It polls the quote feed, derives order books, indicators, block trades
and IPO candidates from live prices, and mirrors orders, positions and
watchlists for the signed-in user.

Use 'wgx help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err != nil {
				return err
			}
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/wealthgather)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("user", "", "user id to sign in as")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addRunCommand(rootCmd, app)
	addMarketCommands(rootCmd, app)
	addPortfolioCommands(rootCmd, app)
	addTradeCommands(rootCmd, app)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Wealthgather Exchange v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Market Configuration")
	output.Printf("  Feed URL:        %s\n", cfg.Market.FeedURL)
	output.Printf("  Poll Interval:   %s\n", cfg.Market.PollInterval)
	output.Printf("  News Interval:   %s\n", cfg.Market.NewsInterval)
	output.Printf("  Instruments:     %d codes\n", len(cfg.Market.InstrumentCodes))
	output.Printf("  Indices:         %d codes\n", len(cfg.Market.IndexCodes))
	output.Println()

	output.Bold("Trading Configuration")
	output.Printf("  Slippage Gate:   %.1f%%\n", cfg.Trading.SlippageThresholdPercent)
	output.Printf("  Initial Cash:    %s\n", FormatYuan(cfg.Trading.InitialCash))
	output.Println()

	output.Bold("Store Configuration")
	output.Printf("  Mode:            %s\n", cfg.Store.Mode)
	if cfg.Store.Mode == "rest" {
		output.Printf("  REST URL:        %s\n", cfg.Store.RestURL)
		output.Printf("  Realtime URL:    %s\n", cfg.Store.RealtimeURL)
	} else {
		output.Printf("  SQLite Path:     %s\n", cfg.Store.SQLitePath)
	}

	return nil
}
