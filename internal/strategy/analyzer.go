// File: internal/strategy/analyzer.go
// ============================================
package strategy

import (
	"context"
	"fmt"

	"crypto-signal-bot/internal/indicators"
	"crypto-signal-bot/internal/market"
	"crypto-signal-bot/pkg/types"

	"github.com/rs/zerolog"
)

// AnalyzerConfig bundles what the analyzer needs from the scan section
type AnalyzerConfig struct {
	Indicators     types.IndicatorSettings
	Strategy       types.StrategyConfig
	CandleLimit    int
	PivotTimeframe string // empty disables the pivot factor
	PivotLimit     int
}

// Analyzer fetches candles for one timeframe pair and runs the detector
type Analyzer struct {
	provider market.Provider
	detector *Detector
	config   AnalyzerConfig
	logger   zerolog.Logger
}

func NewAnalyzer(provider market.Provider, config AnalyzerConfig, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		provider: provider,
		detector: NewDetector(config.Strategy),
		config:   config,
		logger:   logger,
	}
}

// EvaluatePair returns a signal, or nil with the reason it was rejected.
// An error means market data could not be fetched; the pair is simply
// skipped for this cycle.
func (a *Analyzer) EvaluatePair(ctx context.Context, symbol string, pair types.TimeframePair) (*types.Signal, RejectReason, error) {
	// trend filter first: it is the cheapest way to discard a pair
	filterCandles, err := a.provider.FetchCandles(ctx, symbol, pair.Filter, a.config.CandleLimit)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s candles: %w", pair.Filter, err)
	}
	filterSnaps := indicators.Compute(filterCandles, a.config.Indicators)
	if len(filterSnaps) == 0 {
		return nil, RejectNotReady, nil
	}
	trend := ClassifyTrend(filterSnaps[len(filterSnaps)-1])
	if trend == types.TrendFlat {
		return nil, RejectTrendFlat, nil
	}

	workCandles, err := a.provider.FetchCandles(ctx, symbol, pair.Work, a.config.CandleLimit)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s candles: %w", pair.Work, err)
	}
	workSnaps := indicators.Compute(workCandles, a.config.Indicators)
	if len(workSnaps) < 2 {
		return nil, RejectNotReady, nil
	}

	in := Input{
		Symbol:   symbol,
		Pair:     pair,
		Current:  workSnaps[len(workSnaps)-1],
		Previous: workSnaps[len(workSnaps)-2],
		Trend:    trend,
		Day:      a.dayContext(ctx, symbol),
	}

	signal, reason := a.detector.Detect(in)
	a.logger.Debug().
		Str("pair", pair.String()).
		Str("trend", string(trend)).
		Float64("close", in.Current.Close).
		Float64("adx", in.Current.ADX).
		Float64("rsi", in.Current.RSI).
		Str("reject", string(reason)).
		Msg("Pair evaluated")

	return signal, reason, nil
}

// dayContext is best effort: without it the pivot factor and the day
// metrics are just left out.
func (a *Analyzer) dayContext(ctx context.Context, symbol string) *DayContext {
	if a.config.PivotTimeframe == "" {
		return nil
	}

	daily, err := a.provider.FetchCandles(ctx, symbol, a.config.PivotTimeframe, a.config.PivotLimit)
	if err != nil {
		a.logger.Warn().Err(err).Str("timeframe", a.config.PivotTimeframe).Msg("Pivot candles unavailable")
		return nil
	}
	n := len(daily)
	if n < 2 {
		return nil
	}

	today := daily[n-1]
	day := &DayContext{
		Pivot:   indicators.Pivot(daily[n-2]),
		DayOpen: today.Open,
	}
	day.EnergyUsedPct, day.EnergyKnown = indicators.EnergyUsed(daily, a.config.Indicators.ATRPeriod)
	return day
}
