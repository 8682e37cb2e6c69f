// File: cmd/bot/main.go
// ============================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-signal-bot/internal/binance"
	"crypto-signal-bot/internal/bot"
	"crypto-signal-bot/internal/bybit"
	"crypto-signal-bot/internal/config"
	"crypto-signal-bot/internal/journal"
	"crypto-signal-bot/internal/logging"
	"crypto-signal-bot/internal/market"
	"crypto-signal-bot/internal/strategy"
	"crypto-signal-bot/internal/telegram"
	"crypto-signal-bot/pkg/types"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "signal bot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	hour, minute, err := config.ReportClock(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := newProvider(cfg)

	analyzer := strategy.NewAnalyzer(provider, strategy.AnalyzerConfig{
		Indicators:     cfg.Indicators,
		Strategy:       cfg.Strategy,
		CandleLimit:    cfg.Scan.CandleLimit,
		PivotTimeframe: cfg.Scan.PivotTimeframe,
		PivotLimit:     cfg.Scan.PivotLimit,
	}, logging.Component(logger, "strategy"))

	notifier := telegram.NewNotifier(
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		cfg.Telegram.Enabled,
		logging.Component(logger, "telegram"),
	)
	if !notifier.Enabled() {
		logger.Warn().Msg("⚠️ Telegram notifications disabled")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	sink := journal.Open(connectCtx, cfg.Journal.DSN, cfg.Journal.Table, logging.Component(logger, "journal"))
	cancel()
	defer sink.Close()

	b := bot.New(bot.Options{
		Exchange:         cfg.Exchange.Name,
		Symbol:           cfg.Scan.Symbol,
		Pairs:            cfg.Scan.Pairs,
		PairDelay:        cfg.Scan.PairDelay,
		CycleInterval:    cfg.Scan.CycleInterval,
		ReportHour:       hour,
		ReportMinute:     minute,
		Location:         config.ReportLocation(cfg),
		WinRatePrecision: cfg.Report.Precision,
	}, analyzer, provider, notifier, sink, logging.Component(logger, "bot"))

	logStartup(logger, cfg)
	return b.Run(ctx)
}

func newProvider(cfg *types.Config) market.Provider {
	timeout := time.Duration(cfg.Exchange.TimeoutSec) * time.Second

	if cfg.Exchange.Name == "binance" {
		return binance.NewClient(cfg.Exchange.APIKey, cfg.Exchange.Testnet, cfg.Exchange.RateLimit, timeout)
	}
	return bybit.NewClient(cfg.Exchange.APIKey, cfg.Exchange.Category, cfg.Exchange.Testnet, cfg.Exchange.RateLimit, timeout)
}

func logStartup(logger zerolog.Logger, cfg *types.Config) {
	pairs := make([]string, len(cfg.Scan.Pairs))
	for i, p := range cfg.Scan.Pairs {
		pairs[i] = p.String()
	}

	logger.Info().
		Strs("pairs", pairs).
		Str("pivot", cfg.Scan.PivotTimeframe).
		Int("min_confidence", cfg.Strategy.MinConfidence).
		Float64("min_reward_risk", cfg.Strategy.MinRewardRisk).
		Float64("max_risk", cfg.Strategy.MaxRiskFraction).
		Str("report_at", cfg.Report.At).
		Int("utc_offset", cfg.Report.UTCOffsetHours).
		Msg("⚙️ Config loaded")
}
