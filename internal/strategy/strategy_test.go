package strategy

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"crypto-signal-bot/internal/config"
	"crypto-signal-bot/pkg/types"

	"github.com/rs/zerolog"
)

var candleTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func longInput() Input {
	return Input{
		Symbol: "BTCUSDT",
		Pair:   types.TimeframePair{Work: "15m", Filter: "4h"},
		Previous: types.Snapshot{
			Candle:  types.Candle{OpenTime: candleTime.Add(-15 * time.Minute), Close: 99.5},
			EMAFast: 100,
			ATR:     2,
		},
		Current: types.Snapshot{
			Candle:   types.Candle{OpenTime: candleTime, Close: 101, Volume: 140},
			EMAFast:  100,
			ADX:      25,
			RSI:      50,
			ATR:      2,
			VolumeMA: 100,
		},
		Trend: types.TrendUp,
	}
}

func shortInput() Input {
	in := longInput()
	in.Trend = types.TrendDown
	in.Previous.Close = 100.5
	in.Current.Close = 99
	return in
}

func TestClassifyTrend(t *testing.T) {
	cases := []struct {
		name string
		snap types.Snapshot
		want types.TrendState
	}{
		{"up", types.Snapshot{Candle: types.Candle{Close: 105}, EMAFast: 103, EMASlow: 100}, types.TrendUp},
		{"down", types.Snapshot{Candle: types.Candle{Close: 95}, EMAFast: 97, EMASlow: 100}, types.TrendDown},
		{"close above but fast below", types.Snapshot{Candle: types.Candle{Close: 101}, EMAFast: 99, EMASlow: 100}, types.TrendFlat},
		{"close on slow ema", types.Snapshot{Candle: types.Candle{Close: 100}, EMAFast: 101, EMASlow: 100}, types.TrendFlat},
		{"warming up", types.Snapshot{Candle: types.Candle{Close: 105}, EMAFast: 103}, types.TrendFlat},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyTrend(tc.snap); got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDetectLongSignal(t *testing.T) {
	d := NewDetector(config.DefaultStrategy())

	signal, reason := d.Detect(longInput())
	if signal == nil {
		t.Fatalf("Expected a signal, rejected with %q", reason)
	}
	if signal.Side != types.SideLong {
		t.Errorf("Expected LONG, got %s", signal.Side)
	}
	if !near(signal.Entry, 101) || !near(signal.Stop, 97.4) || !near(signal.Target, 108) {
		t.Errorf("Expected 101/97.4/108, got %.4f/%.4f/%.4f", signal.Entry, signal.Stop, signal.Target)
	}
	// trend 25 + crossover 20 + rsi 15 + adx 15 - extension 10
	if signal.Confidence != 65 {
		t.Errorf("Expected confidence 65, got %d", signal.Confidence)
	}
	if len(signal.Reasons) != 5 {
		t.Errorf("Expected 5 reasons, got %v", signal.Reasons)
	}
	if !signal.Metrics.Extended || !near(signal.Metrics.ATRDistance, 0.5) {
		t.Errorf("Expected extended at 0.5 ATR, got %+v", signal.Metrics)
	}
	if signal.ID != "BTCUSDT_LONG_15m_"+strconv.FormatInt(candleTime.UnixMilli(), 10) {
		t.Errorf("Unexpected signal ID %s", signal.ID)
	}
}

func TestDetectShortSignal(t *testing.T) {
	d := NewDetector(config.DefaultStrategy())

	signal, reason := d.Detect(shortInput())
	if signal == nil {
		t.Fatalf("Expected a signal, rejected with %q", reason)
	}
	if signal.Side != types.SideShort {
		t.Errorf("Expected SHORT, got %s", signal.Side)
	}
	if !near(signal.Stop, 102.6) || !near(signal.Target, 92) {
		t.Errorf("Expected stop 102.6 / target 92, got %.4f / %.4f", signal.Stop, signal.Target)
	}
}

func TestDetectRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Input, *types.StrategyConfig)
		want   RejectReason
	}{
		{"flat trend", func(in *Input, _ *types.StrategyConfig) { in.Trend = types.TrendFlat }, RejectTrendFlat},
		{"ema not ready", func(in *Input, _ *types.StrategyConfig) { in.Previous.EMAFast = 0 }, RejectNotReady},
		{"atr not ready", func(in *Input, _ *types.StrategyConfig) { in.Current.ATR = 0 }, RejectNotReady},
		{"already above ema", func(in *Input, _ *types.StrategyConfig) { in.Previous.Close = 100.5 }, RejectNoCrossover},
		{"cross against trend", func(in *Input, _ *types.StrategyConfig) { in.Trend = types.TrendDown }, RejectNoCrossover},
		{"adx weak", func(in *Input, _ *types.StrategyConfig) { in.Current.ADX = 15 }, RejectADXWeak},
		{"volume weak", func(in *Input, _ *types.StrategyConfig) { in.Current.Volume = 100 }, RejectVolumeWeak},
		{"rsi too hot", func(in *Input, _ *types.StrategyConfig) { in.Current.RSI = 80 }, RejectRSIBand},
		{"risk too wide", func(_ *Input, c *types.StrategyConfig) { c.MaxRiskFraction = 0.02 }, RejectRiskTooWide},
		{"reward risk low", func(_ *Input, c *types.StrategyConfig) { c.MinRewardRisk = 2.5 }, RejectRewardRisk},
		{"low confidence", func(_ *Input, c *types.StrategyConfig) { c.MinConfidence = 80 }, RejectLowConfidence},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := longInput()
			cfg := config.DefaultStrategy()
			tc.mutate(&in, &cfg)

			signal, reason := NewDetector(cfg).Detect(in)
			if signal != nil {
				t.Fatalf("Expected rejection %q, got signal %s", tc.want, signal.ID)
			}
			if reason != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, reason)
			}
		})
	}
}

func TestShortRSIBand(t *testing.T) {
	in := shortInput()
	in.Current.RSI = 20

	_, reason := NewDetector(config.DefaultStrategy()).Detect(in)
	if reason != RejectRSIBand {
		t.Errorf("Expected %q, got %q", RejectRSIBand, reason)
	}
}

func TestScoreClamped(t *testing.T) {
	t.Run("ceiling", func(t *testing.T) {
		cfg := config.DefaultStrategy()
		cfg.Scoring.TrendPoints = 90
		cfg.Scoring.CrossoverPoints = 90

		score, _ := NewDetector(cfg).score(types.SideLong, longInput(), types.RiskMetrics{})
		if score != 100 {
			t.Errorf("Expected 100, got %d", score)
		}
	})

	t.Run("floor", func(t *testing.T) {
		cfg := config.DefaultStrategy()
		cfg.Scoring.TrendPoints = 0
		cfg.Scoring.CrossoverPoints = 0
		cfg.Scoring.ExtensionPenalty = 90

		in := longInput()
		score, _ := NewDetector(cfg).score(types.SideLong, in, types.RiskMetrics{Extended: true})
		if score != 0 {
			t.Errorf("Expected 0, got %d", score)
		}
	})
}

func TestScoreOptionalFactors(t *testing.T) {
	d := NewDetector(config.DefaultStrategy())
	in := longInput()
	in.Current.EMATrend = 95
	in.Current.Volume = 160
	in.Previous.BBUpper, in.Previous.BBMid, in.Previous.BBLower = 102, 100, 98
	in.Current.BBUpper, in.Current.BBMid, in.Current.BBLower = 103, 100, 97
	in.Day = &DayContext{Pivot: 99}

	score, reasons := d.score(types.SideLong, in, types.RiskMetrics{})
	// 25 + 20 + 10 + 15 + 15 + 15 + 10 + 10
	if score != 100 {
		t.Errorf("Expected 100, got %d (%v)", score, reasons)
	}
	if !strings.Contains(strings.Join(reasons, "|"), "Pivot") {
		t.Errorf("Expected pivot reason in %v", reasons)
	}

	in.Day = nil
	score, _ = d.score(types.SideLong, in, types.RiskMetrics{})
	if score != 100 {
		t.Errorf("Expected clamp to hold without pivot, got %d", score)
	}
}

func TestSignalIDStable(t *testing.T) {
	a := SignalID("BTCUSDT", types.SideLong, "5m", 1000)
	b := SignalID("BTCUSDT", types.SideLong, "5m", 1000)
	c := SignalID("BTCUSDT", types.SideLong, "5m", 2000)
	if a != b {
		t.Errorf("Expected equal IDs, got %s and %s", a, b)
	}
	if a == c {
		t.Errorf("Expected distinct IDs across candles, got %s", a)
	}
}

type fakeProvider struct {
	candles map[string][]types.Candle
	errs    map[string]error
	calls   map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		candles: make(map[string][]types.Candle),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeProvider) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	f.calls[timeframe]++
	if err := f.errs[timeframe]; err != nil {
		return nil, err
	}
	return f.candles[timeframe], nil
}

func (f *fakeProvider) FetchTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	return types.Ticker{Symbol: symbol}, nil
}

func series(n int, price func(i int) float64) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		p := price(i)
		out[i] = types.Candle{
			OpenTime: candleTime.Add(time.Duration(i) * time.Hour),
			Open:     p,
			High:     p + 1,
			Low:      p - 1,
			Close:    p,
			Volume:   100,
		}
	}
	return out
}

func testAnalyzer(p *fakeProvider, pivot string) *Analyzer {
	return NewAnalyzer(p, AnalyzerConfig{
		Indicators:     config.DefaultIndicators(),
		Strategy:       config.DefaultStrategy(),
		CandleLimit:    250,
		PivotTimeframe: pivot,
		PivotLimit:     20,
	}, zerolog.Nop())
}

func TestAnalyzerFlatTrendSkipsWorkFetch(t *testing.T) {
	p := newFakeProvider()
	p.candles["4h"] = series(250, func(int) float64 { return 100 })

	signal, reason, err := testAnalyzer(p, "1d").EvaluatePair(context.Background(), "BTCUSDT", types.TimeframePair{Work: "15m", Filter: "4h"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if signal != nil || reason != RejectTrendFlat {
		t.Errorf("Expected trend_flat, got %v / %q", signal, reason)
	}
	if p.calls["15m"] != 0 || p.calls["1d"] != 0 {
		t.Errorf("Expected no further fetches, got %v", p.calls)
	}
}

func TestAnalyzerFetchError(t *testing.T) {
	p := newFakeProvider()
	p.errs["4h"] = errors.New("boom")

	_, _, err := testAnalyzer(p, "").EvaluatePair(context.Background(), "BTCUSDT", types.TimeframePair{Work: "15m", Filter: "4h"})
	if err == nil {
		t.Fatal("Expected fetch error")
	}
}

func TestAnalyzerPivotFailureIsNotFatal(t *testing.T) {
	p := newFakeProvider()
	rising := series(250, func(i int) float64 { return 100 + float64(i) })
	p.candles["4h"] = rising
	p.candles["15m"] = rising
	p.errs["1d"] = errors.New("pivot unavailable")

	signal, reason, err := testAnalyzer(p, "1d").EvaluatePair(context.Background(), "BTCUSDT", types.TimeframePair{Work: "15m", Filter: "4h"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// a steady climb never crosses back through the fast EMA
	if signal != nil || reason != RejectNoCrossover {
		t.Errorf("Expected no_crossover, got %v / %q", signal, reason)
	}
	if p.calls["1d"] != 1 {
		t.Errorf("Expected one pivot fetch, got %d", p.calls["1d"])
	}
}

func TestAnalyzerLongOnPullbackRecovery(t *testing.T) {
	p := newFakeProvider()
	p.candles["4h"] = series(250, func(i int) float64 { return 1000 + 0.5*float64(i) })

	// steady climb, a three bar dip under the fast EMA, then a close back
	// above it on the last bar with heavy volume
	work := series(250, func(i int) float64 {
		base := 1000 + 0.5*float64(i)
		switch {
		case i >= 246 && i <= 248:
			return base - 8
		case i == 249:
			return base + 2
		}
		return base
	})
	work[249].Volume = 400
	p.candles["15m"] = work

	cfg := config.DefaultStrategy()
	cfg.ADXFloor = 0
	cfg.RSILongMax = 100
	cfg.MinConfidence = 0

	a := NewAnalyzer(p, AnalyzerConfig{
		Indicators:  config.DefaultIndicators(),
		Strategy:    cfg,
		CandleLimit: 250,
	}, zerolog.Nop())

	signal, reason, err := a.EvaluatePair(context.Background(), "BTCUSDT", types.TimeframePair{Work: "15m", Filter: "4h"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if signal == nil || reason != Accepted {
		t.Fatalf("Expected a signal, rejected with %q", reason)
	}
	if signal.Side != types.SideLong {
		t.Errorf("Expected LONG, got %s", signal.Side)
	}
	if signal.Entry != 1126.5 || !(signal.Stop < signal.Entry && signal.Entry < signal.Target) {
		t.Errorf("Unexpected levels %.2f / %.2f / %.2f", signal.Entry, signal.Stop, signal.Target)
	}
	if !signal.CandleTime.Equal(work[249].OpenTime) {
		t.Errorf("Expected the last candle's time, got %v", signal.CandleTime)
	}
	if len(p.calls) != 2 {
		t.Errorf("Expected no pivot fetch without a pivot timeframe, got %v", p.calls)
	}
}

func TestDayContext(t *testing.T) {
	p := newFakeProvider()
	daily := series(20, func(int) float64 { return 100 })
	daily[18] = types.Candle{OpenTime: daily[18].OpenTime, Open: 100, High: 110, Low: 90, Close: 103}
	p.candles["1d"] = daily

	day := testAnalyzer(p, "1d").dayContext(context.Background(), "BTCUSDT")
	if day == nil {
		t.Fatal("Expected day context")
	}
	if !near(day.Pivot, 101) {
		t.Errorf("Expected pivot of previous bar 101, got %.4f", day.Pivot)
	}
	if day.DayOpen != 100 {
		t.Errorf("Expected day open 100, got %.2f", day.DayOpen)
	}
	if !day.EnergyKnown || day.EnergyUsedPct <= 0 {
		t.Errorf("Expected energy to be known, got %+v", day)
	}
}
