// File: internal/strategy/detector.go
// ============================================
package strategy

import (
	"errors"
	"fmt"
	"math"

	"crypto-signal-bot/internal/risk"
	"crypto-signal-bot/pkg/types"
)

// RejectReason names the first check a candidate failed; empty means accepted
type RejectReason string

const (
	Accepted            RejectReason = ""
	RejectTrendFlat     RejectReason = "trend_flat"
	RejectNotReady      RejectReason = "indicators_not_ready"
	RejectNoCrossover   RejectReason = "no_crossover"
	RejectADXWeak       RejectReason = "adx_weak"
	RejectVolumeWeak    RejectReason = "volume_weak"
	RejectRSIBand       RejectReason = "rsi_out_of_band"
	RejectDegenerate    RejectReason = "degenerate_levels"
	RejectRiskTooWide   RejectReason = "risk_too_wide"
	RejectRewardRisk    RejectReason = "reward_risk_low"
	RejectLowConfidence RejectReason = "low_confidence"
)

// DayContext is the optional higher-timeframe context used for the pivot
// factor and the informational risk metrics.
type DayContext struct {
	Pivot         float64
	DayOpen       float64
	EnergyUsedPct float64
	EnergyKnown   bool
}

// Input is everything the detector looks at for one timeframe pair
type Input struct {
	Symbol   string
	Pair     types.TimeframePair
	Current  types.Snapshot
	Previous types.Snapshot
	Trend    types.TrendState
	Day      *DayContext
}

type Detector struct {
	config types.StrategyConfig
	risk   *risk.Manager
}

func NewDetector(config types.StrategyConfig) *Detector {
	return &Detector{
		config: config,
		risk:   risk.NewManager(config),
	}
}

// Detect runs the filter chain in order and stops at the first failure.
// A signal is returned only when every check passes.
func (d *Detector) Detect(in Input) (*types.Signal, RejectReason) {
	if in.Trend == types.TrendFlat {
		return nil, RejectTrendFlat
	}

	cur, prev := in.Current, in.Previous
	if cur.EMAFast <= 0 || prev.EMAFast <= 0 || cur.ATR <= 0 {
		return nil, RejectNotReady
	}

	side, ok := crossover(in.Trend, cur, prev)
	if !ok {
		return nil, RejectNoCrossover
	}

	if reason := d.momentumGate(side, cur); reason != Accepted {
		return nil, reason
	}

	lv, err := d.risk.Evaluate(side, cur.Close, cur.ATR)
	switch {
	case errors.Is(err, risk.ErrRiskTooWide):
		return nil, RejectRiskTooWide
	case errors.Is(err, risk.ErrRewardRiskLow):
		return nil, RejectRewardRisk
	case err != nil:
		return nil, RejectDegenerate
	}

	metrics := d.metrics(cur, in.Day)
	score, reasons := d.score(side, in, metrics)
	if score < d.config.MinConfidence {
		return nil, RejectLowConfidence
	}

	return &types.Signal{
		ID:              SignalID(in.Symbol, side, in.Pair.Work, cur.OpenTime.UnixMilli()),
		Symbol:          in.Symbol,
		Side:            side,
		WorkTimeframe:   in.Pair.Work,
		FilterTimeframe: in.Pair.Filter,
		CandleTime:      cur.OpenTime,
		Entry:           lv.Entry,
		Stop:            lv.Stop,
		Target:          lv.Target,
		RiskPct:         lv.RiskPct,
		RewardPct:       lv.RewardPct,
		RewardRisk:      lv.RewardRisk,
		Confidence:      score,
		Reasons:         reasons,
		Metrics:         metrics,
	}, Accepted
}

// crossover requires the close to cross the fast EMA in the trend direction
// on this very candle.
func crossover(trend types.TrendState, cur, prev types.Snapshot) (types.Side, bool) {
	switch trend {
	case types.TrendUp:
		if prev.Close <= prev.EMAFast && cur.Close > cur.EMAFast {
			return types.SideLong, true
		}
	case types.TrendDown:
		if prev.Close >= prev.EMAFast && cur.Close < cur.EMAFast {
			return types.SideShort, true
		}
	}
	return "", false
}

func (d *Detector) momentumGate(side types.Side, cur types.Snapshot) RejectReason {
	if cur.ADX < d.config.ADXFloor {
		return RejectADXWeak
	}
	if cur.Volume < cur.VolumeMA*d.config.VolumeFactor {
		return RejectVolumeWeak
	}
	if side == types.SideLong && cur.RSI >= d.config.RSILongMax {
		return RejectRSIBand
	}
	if side == types.SideShort && cur.RSI <= d.config.RSIShortMin {
		return RejectRSIBand
	}
	return Accepted
}

func (d *Detector) metrics(cur types.Snapshot, day *DayContext) types.RiskMetrics {
	m := types.RiskMetrics{
		ATRDistance: math.Abs(cur.Close-cur.EMAFast) / cur.ATR,
	}
	m.Extended = m.ATRDistance > d.config.Scoring.MaxATRDistance

	if day != nil {
		m.Pivot = day.Pivot
		if day.DayOpen > 0 {
			m.DayMove = cur.Close - day.DayOpen
		}
		if day.EnergyKnown {
			m.EnergyUsedPct = day.EnergyUsedPct
		}
	}
	return m
}

// SignalID collides for the same symbol/side/timeframe/candle and differs
// across candles.
func SignalID(symbol string, side types.Side, timeframe string, candleMs int64) string {
	return fmt.Sprintf("%s_%s_%s_%d", symbol, side, timeframe, candleMs)
}
