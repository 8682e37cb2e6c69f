// File: internal/strategy/scoring.go
// ============================================
package strategy

import (
	"fmt"

	"crypto-signal-bot/pkg/types"
)

// score adds each factor's fixed points at most once, in display order,
// then clamps the total to 0..100.
func (d *Detector) score(side types.Side, in Input, m types.RiskMetrics) (int, []string) {
	sc := d.config.Scoring
	cur, prev := in.Current, in.Previous
	long := side == types.SideLong

	total := 0
	reasons := make([]string, 0, 10)
	add := func(points int, format string, args ...interface{}) {
		if points == 0 {
			return
		}
		total += points
		reasons = append(reasons, fmt.Sprintf(format, args...)+fmt.Sprintf(" (%+d)", points))
	}

	add(sc.TrendPoints, "🌊 %s trend %s", in.Pair.Filter, in.Trend)
	add(sc.CrossoverPoints, "📈 Close crossed EMA fast on %s", in.Pair.Work)

	if cur.EMATrend > 0 && (long && cur.Close > cur.EMATrend || !long && cur.Close < cur.EMATrend) {
		add(sc.EMATrendPoints, "🧭 Price on the trend side of EMA trend")
	}

	if cur.VolumeMA > 0 && cur.Volume >= cur.VolumeMA*sc.VolumeStrongFactor {
		add(sc.VolumePoints, "📊 Volume %.2fx average", cur.Volume/cur.VolumeMA)
	}

	if cur.RSI >= sc.RSIOptimalLow && cur.RSI <= sc.RSIOptimalHigh {
		add(sc.RSIPoints, "⚡️ RSI %.1f in optimal band", cur.RSI)
	}

	if cur.ADX >= sc.ADXStrong {
		add(sc.ADXPoints, "💪 ADX %.1f strong momentum", cur.ADX)
	}

	if width, prevWidth := cur.BandWidth(), prev.BandWidth(); prevWidth > 0 && width > prevWidth {
		add(sc.VolatilityPoints, "🌡 Bollinger width expanding")
	}

	if in.Day != nil && in.Day.Pivot > 0 && (long && cur.Close > in.Day.Pivot || !long && cur.Close < in.Day.Pivot) {
		add(sc.PivotPoints, "📍 Pivot zone %.1f", in.Day.Pivot)
	}

	if long && cur.RSI > sc.RSIStretchedHigh || !long && cur.RSI < sc.RSIStretchedLow {
		add(-sc.RSIStretchPenalty, "⚠️ RSI %.1f stretched", cur.RSI)
	}

	if m.Extended {
		add(-sc.ExtensionPenalty, "⚠️ %.2f ATR from EMA fast", m.ATRDistance)
	}

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return total, reasons
}
