// File: internal/indicators/indicators.go
// ============================================
package indicators

import (
	"crypto-signal-bot/pkg/types"

	talib "github.com/markcheno/go-talib"
)

// Compute returns one Snapshot per candle. Values inside an indicator's
// warmup window stay zero; consumers treat zero EMA/ATR as "not ready".
func Compute(candles []types.Candle, s types.IndicatorSettings) []types.Snapshot {
	n := len(candles)
	if n == 0 {
		return nil
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	emaFast := guarded(n, s.EMAFast, func() []float64 { return talib.Ema(closes, s.EMAFast) })
	emaSlow := guarded(n, s.EMASlow, func() []float64 { return talib.Ema(closes, s.EMASlow) })
	emaTrend := guarded(n, s.EMATrend, func() []float64 { return talib.Ema(closes, s.EMATrend) })
	rsi := guarded(n, s.RSIPeriod+1, func() []float64 { return talib.Rsi(closes, s.RSIPeriod) })
	atr := guarded(n, s.ATRPeriod+1, func() []float64 { return talib.Atr(highs, lows, closes, s.ATRPeriod) })
	adx := guarded(n, 2*s.ADXPeriod, func() []float64 { return talib.Adx(highs, lows, closes, s.ADXPeriod) })
	volMA := guarded(n, s.VolumePeriod, func() []float64 { return talib.Sma(volumes, s.VolumePeriod) })

	bbUpper, bbMid, bbLower := make([]float64, n), make([]float64, n), make([]float64, n)
	if s.BBPeriod > 1 && n >= s.BBPeriod {
		bbUpper, bbMid, bbLower = talib.BBands(closes, s.BBPeriod, s.BBDeviation, s.BBDeviation, talib.SMA)
	}

	snapshots := make([]types.Snapshot, n)
	for i, c := range candles {
		snapshots[i] = types.Snapshot{
			Candle:   c,
			EMAFast:  emaFast[i],
			EMASlow:  emaSlow[i],
			EMATrend: emaTrend[i],
			RSI:      rsi[i],
			ADX:      adx[i],
			ATR:      atr[i],
			BBUpper:  bbUpper[i],
			BBMid:    bbMid[i],
			BBLower:  bbLower[i],
			VolumeMA: volMA[i],
		}
	}
	return snapshots
}

// talib indexes past the input when it is shorter than the lookback
func guarded(n, need int, f func() []float64) []float64 {
	if need <= 1 || n < need {
		return make([]float64, n)
	}
	return f()
}

// Pivot is the classic floor pivot (H+L+C)/3 of a completed bar
func Pivot(c types.Candle) float64 {
	return (c.High + c.Low + c.Close) / 3
}

// EnergyUsed reports how much of the average daily range the latest daily
// bar has already covered, in percent. ok is false while ATR is warming up.
func EnergyUsed(daily []types.Candle, atrPeriod int) (pct float64, ok bool) {
	n := len(daily)
	if n == 0 {
		return 0, false
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, c := range daily {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}

	atr := guarded(n, atrPeriod+1, func() []float64 { return talib.Atr(highs, lows, closes, atrPeriod) })
	last := atr[n-1]
	if last <= 0 {
		return 0, false
	}

	today := daily[n-1]
	return (today.High - today.Low) / last * 100, true
}
