package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/config"
	"tally/internal/core"
	"tally/internal/discord"
	"tally/internal/ledger"
	gsheet "tally/internal/ledger/google"
	mem "tally/internal/ledger/memory"
	applog "tally/internal/log"
	"tally/internal/period"
	"tally/internal/render"
	"tally/internal/services"
	"tally/internal/undo"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.FromEnv(applog.ComponentApp)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("Configuration warning", "warning", w)
	}

	ledgerCfg, err := config.LoadLedger(cfg.LedgerConfigFile)
	if err != nil {
		logger.Error("Failed to load ledger config", "error", err, "path", cfg.LedgerConfigFile)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store ledger.Store
	switch cfg.DataBackend {
	case "sheets":
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID: cfg.SpreadsheetID,
			DateLayout:    cfg.DateFormat,
			Credentials: gsheet.Credentials{
				ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
				ServiceAccountFile: cfg.GoogleServiceAccountFile,
				OAuthClientFile:    cfg.GoogleOAuthClientFile,
				OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
			},
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets store", "error", err)
			os.Exit(1)
		}
		store = client
		logger.Info("Initialized Google Sheets backend", "spreadsheet_id", cfg.SpreadsheetID)
	default:
		store = mem.New()
		logger.Info("Initialized memory backend")
	}

	clock := ledger.SystemClock{}
	lifecycle := period.NewLifecycle(store, clock,
		period.Resolver{Format: cfg.PeriodNameFormat},
		period.NewSeeder(ledgerCfg.Templates()),
		cfg.RolloverAt)
	if err := lifecycle.Open(ctx); err != nil {
		logger.Error("Failed to open current period", "error", err)
		os.Exit(1)
	}
	logger.Info("Current period open", "period", lifecycle.Current())

	renderer, err := render.New(cfg.DateFormat)
	if err != nil {
		logger.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP event stream enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	assistant := services.NewAssistant(store, lifecycle,
		undo.NewGuard(cfg.UndoWindow), clock,
		core.ParseConfig{
			Aliases:       ledgerCfg.Aliases,
			Defaults:      ledgerCfg.Defaults,
			DateDelimiter: cfg.DateDelimiter,
		},
		renderer, publisher)

	bot, err := discord.NewBot(cfg.DiscordToken, cfg.DiscordChannelID, cfg.HealthPort, assistant)
	if err != nil {
		logger.Error("Failed to create Discord bot", "error", err)
		os.Exit(1)
	}
	if err := bot.Start(); err != nil {
		logger.Error("Failed to start Discord bot", "error", err)
		os.Exit(1)
	}
	defer bot.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tickLoop(ctx, assistant, renderer, bot, cfg.TickInterval)
	})

	logger.Info("tally started",
		"backend", cfg.DataBackend,
		"period_format", cfg.PeriodNameFormat,
		"tick_interval", cfg.TickInterval.String())

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Shutting down after error", "error", err)
		os.Exit(1)
	}
	logger.Info("Stopped gracefully")
}

// tickLoop drives the automatic rollover and announces completed ones in
// the chat with the closed period's summary attached.
func tickLoop(ctx context.Context, assistant *services.Assistant, renderer *render.Renderer, notifier ledger.Notifier, interval time.Duration) error {
	logger := applog.FromEnv(applog.ComponentPeriod)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			closed, err := assistant.Tick(ctx, now)
			if err != nil {
				logger.ErrorContext(ctx, "Rollover attempt failed", "error", err)
				continue
			}
			if closed == nil {
				continue
			}
			caption := fmt.Sprintf("Closed %s, opened %s.", closed.ClosedPeriod, closed.OpenedPeriod)
			doc, err := renderer.Summary(closed.ClosedPeriod, closed.Summary)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to render closing summary", "error", err)
				if err := notifier.Send(ctx, "", caption); err != nil {
					logger.ErrorContext(ctx, "Failed to announce rollover", "error", err)
				}
				continue
			}
			name := fmt.Sprintf("%s.html", closed.ClosedPeriod)
			if err := notifier.SendDocument(ctx, "", name, doc, caption); err != nil {
				logger.ErrorContext(ctx, "Failed to announce rollover", "error", err)
			}
		}
	}
}
