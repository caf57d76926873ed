// Package cli provides the command-line interface for the stock alert monitor.
package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stockquote-alert/internal/config"
	"stockquote-alert/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-03-01"
)

// App holds the application dependencies. They are resolved in the root
// command's PersistentPreRunE once flags are parsed.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// newLogger is swapped in tests to keep output quiet.
	newLogger func(cfg logging.LogConfig) zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{newLogger: logging.NewLoggerWithConfig})
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockalert",
		Short: "Stock Quote Alert - price threshold e-mail alerts",
		Long: `Stock Quote Alert watches a stock's price on the Brapi API and e-mails you
when it rises above your sell target or falls below your buy target.

Configuration lives in ~/.config/stockquote-alert/config.toml and every key can
be overridden with a STOCKALERT_ environment variable.

Use 'stockalert watch PETR4 40.00 30.00' to start monitoring.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stockquote-alert)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addMonitoringCommands(rootCmd, app)

	return rootCmd
}

// Execute runs the CLI with ctx, which is cancelled on shutdown signals.
func Execute(ctx context.Context, args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func (app *App) init(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	app.Config = cfg

	app.Logger = app.newLogger(logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
	})

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}

	if cfg.TemplateCreated {
		app.Logger.Info().Str("path", cfg.Path()).Msg("Created configuration template")
	}
	return nil
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Stock Quote Alert v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			redacted := app.Config.Redacted()
			if output.IsJSON() {
				return output.JSON(redacted)
			}
			showConfig(output, &redacted)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.Path()})
			}
			output.Println(app.Config.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true, "email_configured": app.Config.EmailConfigured()})
			}
			output.Success("✓ Configuration is valid")
			if !app.Config.EmailConfigured() {
				output.Warning("E-mail settings are incomplete; alerts will only be logged")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Monitoring")
	output.Printf("  Check Interval:  %s\n", cfg.Monitoring.CheckInterval)
	output.Printf("  API Base URL:    %s\n", cfg.Monitoring.APIBaseURL)
	output.Printf("  Brapi Token:     %s\n", orNone(cfg.Monitoring.BrapiToken))
	output.Printf("  Fetch Timeout:   %s\n", cfg.Monitoring.FetchTimeout)
	output.Printf("  Free Symbols:    %v\n", cfg.Monitoring.FreeSymbols)
	output.Println()

	output.Bold("Cooldown")
	output.Printf("  Enabled:         %v\n", cfg.Cooldown.Enabled)
	output.Printf("  Duration:        %s\n", cfg.Cooldown.Duration)
	output.Println()

	output.Bold("E-mail")
	output.Printf("  Sender:          %s\n", orNone(cfg.Email.SenderEmail))
	output.Printf("  SMTP Server:     %s:%d\n", orNone(cfg.Email.SMTPServer), cfg.Email.SMTPPort)
	output.Printf("  SMTP Password:   %s\n", orNone(cfg.Email.SMTPPass))
	output.Printf("  Recipient:       %s\n", orNone(cfg.Email.RecipientEmail))
	output.Printf("  Send Timeout:    %s\n", cfg.Email.SendTimeout)
	output.Printf("  Require Config:  %v\n", cfg.Email.RequireConfigured)
	output.Println()

	output.Bold("Metrics & Store")
	output.Printf("  Metrics:         %v (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Addr)
	output.Printf("  Alert Journal:   %v (%s)\n", cfg.Store.Enabled, cfg.Store.Path)
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
