package indicators

import (
	"math"
	"testing"
	"time"

	"crypto-signal-bot/pkg/types"
)

var settings = types.IndicatorSettings{
	EMAFast:      20,
	EMASlow:      50,
	EMATrend:     200,
	RSIPeriod:    14,
	ADXPeriod:    14,
	ATRPeriod:    14,
	BBPeriod:     20,
	BBDeviation:  2,
	VolumePeriod: 20,
}

// risingSeries climbs 0.5 per bar with a small zig-zag so RSI has losses
func risingSeries(n int) []types.Candle {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, n)
	for i := range candles {
		wiggle := 0.3
		if i%2 == 1 {
			wiggle = -0.3
		}
		close := 100 + 0.5*float64(i) + wiggle
		candles[i] = types.Candle{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     close - 0.2,
			High:     close + 1,
			Low:      close - 1,
			Close:    close,
			Volume:   1000 + float64(i%5)*10,
		}
	}
	return candles
}

func TestComputeOnRisingSeries(t *testing.T) {
	candles := risingSeries(260)
	snaps := Compute(candles, settings)

	if len(snaps) != len(candles) {
		t.Fatalf("Expected %d snapshots, got %d", len(candles), len(snaps))
	}

	last := snaps[len(snaps)-1]
	if last.Close != candles[len(candles)-1].Close {
		t.Errorf("Snapshot not aligned with candle")
	}
	if !(last.EMAFast > last.EMASlow && last.EMASlow > last.EMATrend) {
		t.Errorf("Expected stacked EMAs on uptrend, got fast=%.2f slow=%.2f trend=%.2f",
			last.EMAFast, last.EMASlow, last.EMATrend)
	}
	if last.RSI <= 50 || last.RSI > 100 {
		t.Errorf("Expected bullish RSI, got %.2f", last.RSI)
	}
	if last.ATR <= 0 {
		t.Errorf("Expected positive ATR, got %.4f", last.ATR)
	}
	if last.ADX <= 0 || last.ADX > 100 {
		t.Errorf("Expected ADX within (0,100], got %.2f", last.ADX)
	}
	if !(last.BBUpper > last.BBMid && last.BBMid > last.BBLower) {
		t.Errorf("Bollinger bands out of order: %.2f %.2f %.2f", last.BBUpper, last.BBMid, last.BBLower)
	}
	if math.Abs(last.VolumeMA-1020) > 1e-6 {
		t.Errorf("Expected volume MA 1020, got %.4f", last.VolumeMA)
	}
	if last.BandWidth() <= 0 {
		t.Errorf("Expected positive band width")
	}
}

func TestComputeWarmupStaysZero(t *testing.T) {
	snaps := Compute(risingSeries(260), settings)

	early := snaps[5]
	if early.EMAFast != 0 || early.EMASlow != 0 || early.EMATrend != 0 {
		t.Errorf("Expected zero EMAs during warmup, got %+v", early)
	}
	if early.ATR != 0 || early.ADX != 0 {
		t.Errorf("Expected zero ATR/ADX during warmup")
	}
	if snaps[100].EMATrend != 0 {
		t.Errorf("EMA200 must not be ready at bar 100")
	}
}

func TestComputeShortSeriesDoesNotPanic(t *testing.T) {
	snaps := Compute(risingSeries(8), settings)
	if len(snaps) != 8 {
		t.Fatalf("Expected 8 snapshots, got %d", len(snaps))
	}
	for i, s := range snaps {
		if s.EMAFast != 0 || s.ATR != 0 || s.BBMid != 0 {
			t.Errorf("snapshot %d should be empty: %+v", i, s)
		}
	}

	if Compute(nil, settings) != nil {
		t.Error("Expected nil for empty input")
	}
}

func TestPivot(t *testing.T) {
	p := Pivot(types.Candle{High: 110, Low: 90, Close: 100})
	if p != 100 {
		t.Errorf("Expected pivot 100, got %.2f", p)
	}
}

func TestEnergyUsed(t *testing.T) {
	daily := make([]types.Candle, 15)
	for i := range daily {
		daily[i] = types.Candle{Open: 100, High: 105, Low: 95, Close: 100}
	}
	// today covered only 4 of the usual 10
	daily[14] = types.Candle{Open: 100, High: 102, Low: 98, Close: 101}

	pct, ok := EnergyUsed(daily, 14)
	if !ok {
		t.Fatal("Expected energy to be available")
	}
	if pct <= 0 || pct >= 100 {
		t.Errorf("Expected partial energy use, got %.2f%%", pct)
	}

	if _, ok := EnergyUsed(daily[:5], 14); ok {
		t.Error("Expected not ok while ATR warms up")
	}
}
