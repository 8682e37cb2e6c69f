// File: internal/bot/bot.go
// ============================================
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"crypto-signal-bot/internal/journal"
	"crypto-signal-bot/internal/stats"
	"crypto-signal-bot/internal/strategy"
	"crypto-signal-bot/internal/tracker"
	"crypto-signal-bot/pkg/types"

	"github.com/rs/zerolog"
)

// Analyzer evaluates one timeframe pair
type Analyzer interface {
	EvaluatePair(ctx context.Context, symbol string, pair types.TimeframePair) (*types.Signal, strategy.RejectReason, error)
}

// PriceSource supplies the live price used to track open trades
type PriceSource interface {
	FetchTicker(ctx context.Context, symbol string) (types.Ticker, error)
}

type Notifier interface {
	NotifyStart(ctx context.Context, exchange, symbol string, pairs []types.TimeframePair) error
	NotifySignal(ctx context.Context, signal types.Signal, winRate float64, image []byte) error
	NotifyClose(ctx context.Context, ev types.CloseEvent) error
	NotifyDailyReport(ctx context.Context, report types.DailyReport) error
}

type Options struct {
	Exchange         string
	Symbol           string
	Pairs            []types.TimeframePair
	PairDelay        time.Duration
	CycleInterval    time.Duration
	ReportHour       int
	ReportMinute     int
	Location         *time.Location
	WinRatePrecision int
}

// Bot owns every piece of mutable state and runs on a single goroutine
type Bot struct {
	opts     Options
	analyzer Analyzer
	prices   PriceSource
	notifier Notifier
	journal  journal.Sink
	logger   zerolog.Logger

	tracker  *tracker.Tracker
	dedup    *tracker.Dedup
	stats    *stats.Aggregator
	boundary *stats.Boundary

	now func() time.Time
}

func New(opts Options, analyzer Analyzer, prices PriceSource, notifier Notifier, sink journal.Sink, logger zerolog.Logger) *Bot {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if sink == nil {
		sink = journal.NopSink{}
	}

	now := time.Now
	return &Bot{
		opts:     opts,
		analyzer: analyzer,
		prices:   prices,
		notifier: notifier,
		journal:  sink,
		logger:   logger,
		tracker:  tracker.New(),
		dedup:    tracker.NewDedup(),
		stats:    stats.NewAggregator(opts.WinRatePrecision),
		boundary: stats.NewBoundary(opts.ReportHour, opts.ReportMinute, opts.Location, now()),
		now:      now,
	}
}

// Run loops until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info().
		Str("exchange", b.opts.Exchange).
		Str("symbol", b.opts.Symbol).
		Int("pairs", len(b.opts.Pairs)).
		Dur("cycle", b.opts.CycleInterval).
		Msg("🚀 Signal bot started")

	if err := b.notifier.NotifyStart(ctx, b.opts.Exchange, b.opts.Symbol, b.opts.Pairs); err != nil {
		b.logger.Error().Err(err).Msg("Start notification failed")
	}

	for {
		b.runCycle(ctx)

		if err := sleep(ctx, b.opts.CycleInterval); err != nil {
			b.logger.Info().Msg("Signal bot stopped")
			return nil
		}
	}
}

// runCycle does one scan, track and report pass. A panic is logged and
// swallowed so the next cycle still runs.
func (b *Bot) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Msg("Cycle panicked")
		}
	}()

	b.logger.Debug().Msg("🔄 Cycle started")

	live := &cycleTicker{source: b.prices, symbol: b.opts.Symbol}
	if signal := b.scan(ctx); signal != nil {
		b.emit(ctx, *signal, live)
	}
	b.track(ctx, live)
	b.checkDailyReport(ctx)
}

// cycleTicker fetches the live ticker at most once per cycle, so funding on
// a new alert and trade tracking read the same quote.
type cycleTicker struct {
	source  PriceSource
	symbol  string
	fetched bool
	ticker  types.Ticker
	err     error
}

func (c *cycleTicker) get(ctx context.Context) (types.Ticker, error) {
	if !c.fetched {
		c.ticker, c.err = c.source.FetchTicker(ctx, c.symbol)
		c.fetched = true
	}
	return c.ticker, c.err
}

// scan evaluates pairs in priority order and stops at the first signal
func (b *Bot) scan(ctx context.Context) *types.Signal {
	for i, pair := range b.opts.Pairs {
		if i > 0 {
			if err := sleep(ctx, b.opts.PairDelay); err != nil {
				return nil
			}
		}

		signal, reason, err := b.analyzer.EvaluatePair(ctx, b.opts.Symbol, pair)
		if err != nil {
			b.logger.Warn().Err(err).Str("pair", pair.String()).Msg("Pair skipped")
			continue
		}
		if signal != nil {
			return signal
		}
		b.logger.Debug().Str("pair", pair.String()).Str("reason", string(reason)).Msg("No signal")
	}
	return nil
}

// emit alerts, journals and starts tracking a new signal. Alert and journal
// failures are logged only; the trade is tracked either way.
func (b *Bot) emit(ctx context.Context, signal types.Signal, live *cycleTicker) {
	if !b.dedup.Claim(signal.ID) {
		b.logger.Debug().Str("signal_id", signal.ID).Msg("Signal already alerted")
		return
	}

	if t, err := live.get(ctx); err == nil {
		signal.Metrics.FundingRate = t.FundingRate
	}

	b.logger.Info().
		Str("signal_id", signal.ID).
		Str("side", string(signal.Side)).
		Float64("entry", signal.Entry).
		Float64("stop", signal.Stop).
		Float64("target", signal.Target).
		Int("confidence", signal.Confidence).
		Msg("🚨 Signal")

	if err := b.notifier.NotifySignal(ctx, signal, b.stats.WinRate(), nil); err != nil {
		b.logger.Error().Err(err).Str("signal_id", signal.ID).Msg("Signal alert failed")
	}

	now := b.now()
	if err := b.journal.AppendRow(ctx, journal.SignalRow(signal, now)); err != nil {
		b.logger.Error().Err(err).Str("signal_id", signal.ID).Msg("Journal append failed")
	}

	trade := b.tracker.Open(signal, now)
	b.stats.RecordEmitted()
	b.logger.Info().Str("trade_id", trade.ID).Int("open", b.tracker.OpenCount()).Msg("Tracking trade")
}

// track checks open trades against one live price
func (b *Bot) track(ctx context.Context, live *cycleTicker) {
	if b.tracker.OpenCount() == 0 {
		return
	}

	ticker, err := live.get(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Live price unavailable")
		return
	}

	for _, ev := range b.tracker.Tick(ticker.LastPrice, b.now()) {
		b.stats.RecordClose(ev)

		b.logger.Info().
			Str("trade_id", ev.Trade.ID).
			Str("state", string(ev.Trade.State)).
			Float64("price", ev.Price).
			Float64("result_pct", ev.RealizedPct).
			Msg("Trade closed")

		if err := b.notifier.NotifyClose(ctx, ev); err != nil {
			b.logger.Error().Err(err).Str("trade_id", ev.Trade.ID).Msg("Close notification failed")
		}
		if err := b.journal.AppendRow(ctx, journal.CloseRow(ev)); err != nil {
			b.logger.Error().Err(err).Str("trade_id", ev.Trade.ID).Msg("Journal append failed")
		}
	}
}

// checkDailyReport sends the report once the boundary passes, then starts
// a fresh day: counters and the alerted set are cleared, open trades stay.
func (b *Bot) checkDailyReport(ctx context.Context) {
	now := b.now()
	if !b.boundary.Due(now) {
		return
	}
	b.boundary.MarkFired(now)

	report := b.stats.Report(b.boundary.Date(now), b.tracker.OpenCount())
	b.logger.Info().
		Int("emitted", report.Stats.Emitted).
		Int("closed", report.Stats.TotalClosed).
		Float64("win_rate", report.WinRate).
		Float64("profit_pct", report.Stats.ProfitPct).
		Msg("📊 Daily report")

	if err := b.notifier.NotifyDailyReport(ctx, report); err != nil {
		b.logger.Error().Err(err).Msg("Daily report failed")
	}

	b.stats.Reset()
	b.dedup.Reset()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
