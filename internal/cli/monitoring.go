package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stockquote-alert/internal/alert"
	"stockquote-alert/internal/errors"
	"stockquote-alert/internal/logging"
	"stockquote-alert/internal/metrics"
	"stockquote-alert/internal/models"
	"stockquote-alert/internal/notify"
	"stockquote-alert/internal/quote"
	"stockquote-alert/internal/store"
)

// addMonitoringCommands adds watch, check and history.
func addMonitoringCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newCheckCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
}

// parseWatchArgs parses TICKER SELL BUY.
func parseWatchArgs(args []string) (models.TrackedAsset, error) {
	if len(args) != 3 {
		return models.TrackedAsset{}, fmt.Errorf("%w: usage: watch <TICKER> <SELL_PRICE> <BUY_PRICE>", errors.ErrInvalidArgument)
	}

	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	if symbol == "" {
		return models.TrackedAsset{}, fmt.Errorf("%w: ticker must not be empty", errors.ErrInvalidArgument)
	}

	sell, err := decimal.NewFromString(strings.TrimSpace(args[1]))
	if err != nil {
		return models.TrackedAsset{}, fmt.Errorf("%w: invalid sell price %q", errors.ErrInvalidArgument, args[1])
	}
	buy, err := decimal.NewFromString(strings.TrimSpace(args[2]))
	if err != nil {
		return models.TrackedAsset{}, fmt.Errorf("%w: invalid buy price %q", errors.ErrInvalidArgument, args[2])
	}

	return models.TrackedAsset{Symbol: symbol, BuyThreshold: buy, SellThreshold: sell}, nil
}

func (app *App) newQuoteClient() (*quote.BrapiClient, error) {
	cfg := app.Config.Monitoring
	return quote.NewBrapiClient(quote.Config{
		BaseURL:     cfg.APIBaseURL,
		Token:       cfg.BrapiToken,
		FreeSymbols: cfg.FreeSymbols,
		Timeout:     cfg.FetchTimeout,
	}, app.Logger)
}

func (app *App) newEmailDispatcher() *notify.EmailDispatcher {
	e := app.Config.Email
	return notify.NewEmailDispatcher(notify.EmailConfig{
		SenderEmail:    e.SenderEmail,
		SMTPServer:     e.SMTPServer,
		SMTPPort:       e.SMTPPort,
		SMTPUser:       e.SMTPUser,
		SMTPPass:       e.SMTPPass,
		RecipientEmail: e.RecipientEmail,
	}, app.Logger)
}

func newWatchCmd(app *App) *cobra.Command {
	var (
		interval   time.Duration
		cooldown   time.Duration
		noCooldown bool
		logOnly    bool
	)

	cmd := &cobra.Command{
		Use:   "watch <TICKER> <SELL_PRICE> <BUY_PRICE>",
		Short: "Monitor a stock and alert on threshold crossings",
		Long: `Poll the quote API and send an alert whenever the price rises above
SELL_PRICE or falls below BUY_PRICE. Runs until interrupted.`,
		Example: `  stockalert watch PETR4 40.00 30.00
  stockalert watch VALE3 70 55 --interval 5m --cooldown 1h
  stockalert watch ITUB4 35 28 --log-only`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := parseWatchArgs(args)
			if err != nil {
				return err
			}

			cfg := app.Config
			if cmd.Flags().Changed("interval") {
				cfg.Monitoring.CheckInterval = interval
			}
			if cmd.Flags().Changed("cooldown") {
				cfg.Cooldown.Duration = cooldown
			}
			if noCooldown {
				cfg.Cooldown.Enabled = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return app.runWatch(cmd, asset, logOnly)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "polling interval (overrides monitoring.check_interval)")
	cmd.Flags().DurationVar(&cooldown, "cooldown", 0, "alert cooldown (overrides cooldown.duration)")
	cmd.Flags().BoolVar(&noCooldown, "no-cooldown", false, "alert on every crossing tick")
	cmd.Flags().BoolVar(&logOnly, "log-only", false, "print alerts to the terminal instead of e-mailing them")

	return cmd
}

func (app *App) runWatch(cmd *cobra.Command, asset models.TrackedAsset, logOnly bool) error {
	ctx := cmd.Context()
	cfg := app.Config
	log := logging.WithSymbol(app.Logger, asset.Symbol)

	if !asset.HasNeutralZone() {
		log.Warn().
			Str("buy_threshold", asset.BuyThreshold.String()).
			Str("sell_threshold", asset.SellThreshold.String()).
			Msg("Buy threshold is not below sell threshold; sell alerts take precedence")
	}

	source, err := app.newQuoteClient()
	if err != nil {
		return err
	}
	if cfg.Monitoring.BrapiToken == "" && source.RequiresToken(asset.Symbol) {
		log.Warn().Msg("Symbol requires a Brapi token; every tick will be skipped until one is configured")
	}

	var dispatcher alert.Dispatcher
	if logOnly {
		dispatcher = notify.NewTerminalDispatcher(cmd.OutOrStdout())
	} else {
		email := app.newEmailDispatcher()
		if !email.Configured() {
			log.Warn().Msg("E-mail settings incomplete; alerts will be logged only")
		}
		dispatcher = email
	}

	policy := alert.DispatchAlways
	if cfg.Email.RequireConfigured {
		policy = alert.DispatchWhenConfigured
	}

	var opts []alert.EngineOption
	if cfg.Store.Enabled {
		journal, err := store.NewSQLiteStore(cfg.Store.Path, app.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("Alert journal unavailable, continuing without it")
		} else {
			defer journal.Close()
			opts = append(opts, alert.WithJournal(journal))
		}
	}

	if cfg.Metrics.Enabled {
		srv, errCh := metrics.Serve(cfg.Metrics.Addr)
		defer metrics.Shutdown(srv)
		go watchMetricsServer(errCh, app.Logger)
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics endpoint up")
	}

	engine := alert.NewEngine(alert.EngineConfig{
		Asset:           asset,
		CooldownEnabled: cfg.Cooldown.Enabled,
		Cooldown:        cfg.Cooldown.Duration,
		DispatchPolicy:  policy,
		SendTimeout:     cfg.Email.SendTimeout,
	}, alert.NewLedger(), notify.NewHTMLRenderer(), dispatcher, app.Logger, opts...)

	scheduler := alert.NewScheduler(source, engine, alert.SchedulerConfig{
		Interval:     cfg.Monitoring.CheckInterval,
		FetchTimeout: cfg.Monitoring.FetchTimeout,
	}, app.Logger)

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func watchMetricsServer(errCh <-chan error, log zerolog.Logger) {
	if err, ok := <-errCh; ok && err != nil {
		log.Error().Err(err).Msg("Metrics server stopped")
	}
}

func newCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check <TICKER>",
		Short: "Fetch the current price once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := strings.ToUpper(strings.TrimSpace(args[0]))

			client, err := app.newQuoteClient()
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd.Context(), app.Config.Monitoring.FetchTimeout)
			defer cancel()

			q, err := client.Quote(ctx, symbol)
			if err != nil {
				if output.IsJSON() {
					_ = output.JSON(map[string]string{
						"symbol": symbol,
						"reason": errors.Reason(err),
						"error":  err.Error(),
					})
				} else {
					output.Error("✗ No price for %s (%s): %v", symbol, errors.Reason(err), err)
				}
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{
					"symbol":     symbol,
					"short_name": q.ShortName,
					"currency":   q.Currency,
					"price":      q.Price.String(),
				})
			}
			name := q.ShortName
			if name == "" {
				name = symbol
			}
			output.Bold("%s (%s)", symbol, name)
			output.Printf("  Price: %s %s\n", q.Price.StringFixed(2), q.Currency)
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	var (
		symbol string
		action string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			filter := store.AlertFilter{Symbol: strings.ToUpper(symbol), Limit: limit}
			if action != "" {
				a := models.Action(strings.ToUpper(action))
				if !a.IsAlert() {
					return fmt.Errorf("%w: action must be BUY or SELL", errors.ErrInvalidArgument)
				}
				filter.Action = a
			}

			journal, err := store.NewSQLiteStore(app.Config.Store.Path, app.Logger)
			if err != nil {
				return err
			}
			defer journal.Close()

			alerts, err := journal.RecentAlerts(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if alerts == nil {
					alerts = []models.AlertRecord{}
				}
				return output.JSON(alerts)
			}
			if len(alerts) == 0 {
				output.Dim("No alerts recorded yet")
				return nil
			}

			table := NewTable(output, "FIRED AT", "SYMBOL", "ACTION", "PRICE", "BUY", "SELL", "DELIVERED")
			for _, a := range alerts {
				act := output.Green(a.Action.String())
				if a.Action == models.ActionSell {
					act = output.Red(a.Action.String())
				}
				delivered := "yes"
				if !a.Delivered {
					delivered = "no: " + a.Error
				}
				table.AddRow(
					a.FiredAt.Local().Format("2006-01-02 15:04:05"),
					a.Symbol,
					act,
					notify.FormatUSD(a.Price),
					notify.FormatUSD(a.BuyThreshold),
					notify.FormatUSD(a.SellThreshold),
					delivered,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "only alerts for this ticker")
	cmd.Flags().StringVar(&action, "action", "", "only BUY or SELL alerts")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultHistoryLimit, "maximum number of alerts to show")

	return cmd
}
