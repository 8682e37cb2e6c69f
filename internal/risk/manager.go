// File: internal/risk/manager.go
// ============================================
package risk

import (
	"errors"
	"math"

	"crypto-signal-bot/pkg/types"

	"github.com/shopspring/decimal"
)

var (
	ErrDegenerateLevels = errors.New("stop or target collapses onto entry")
	ErrRiskTooWide      = errors.New("stop distance exceeds risk ceiling")
	ErrRewardRiskLow    = errors.New("reward:risk below minimum")
)

// Levels is a validated entry/stop/target triple
type Levels struct {
	Entry      float64
	Stop       float64
	Target     float64
	RiskPct    float64
	RewardPct  float64
	RewardRisk float64
}

type Manager struct {
	config types.StrategyConfig
}

func NewManager(config types.StrategyConfig) *Manager {
	return &Manager{config: config}
}

// CalculateStopLoss places the stop ATR*mult behind entry
func (m *Manager) CalculateStopLoss(entryPrice, atr float64, side types.Side) float64 {
	distance := atr * m.config.StopATRMult

	if side == types.SideLong {
		return entryPrice - distance
	}
	return entryPrice + distance
}

// CalculateTakeProfit places the target ahead of entry by the larger of the
// ATR multiple and the minimum target fraction.
func (m *Manager) CalculateTakeProfit(entryPrice, atr float64, side types.Side) float64 {
	distance := math.Max(atr*m.config.TargetATRMult, entryPrice*m.config.MinTargetFraction)

	if side == types.SideLong {
		return entryPrice + distance
	}
	return entryPrice - distance
}

// Evaluate computes levels for a candidate entry and applies the risk ceiling
// and reward:risk floor. The returned Levels are only meaningful with a nil error.
func (m *Manager) Evaluate(side types.Side, entry, atr float64) (Levels, error) {
	entry = RoundToTick(entry, m.config.PriceTick)
	stop := RoundToTick(m.CalculateStopLoss(entry, atr, side), m.config.PriceTick)
	target := RoundToTick(m.CalculateTakeProfit(entry, atr, side), m.config.PriceTick)

	riskDist := math.Abs(entry - stop)
	rewardDist := math.Abs(target - entry)
	if entry <= 0 || riskDist == 0 || rewardDist == 0 {
		return Levels{}, ErrDegenerateLevels
	}
	// rounding must never flip a level to the wrong side of entry
	if side == types.SideLong && (stop >= entry || target <= entry) ||
		side == types.SideShort && (stop <= entry || target >= entry) {
		return Levels{}, ErrDegenerateLevels
	}

	lv := Levels{
		Entry:      entry,
		Stop:       stop,
		Target:     target,
		RiskPct:    riskDist / entry * 100,
		RewardPct:  rewardDist / entry * 100,
		RewardRisk: rewardDist / riskDist,
	}

	if riskDist/entry > m.config.MaxRiskFraction {
		return lv, ErrRiskTooWide
	}
	if lv.RewardRisk < m.config.MinRewardRisk {
		return lv, ErrRewardRiskLow
	}
	return lv, nil
}

// RoundToTick rounds a price to the instrument tick; tick <= 0 leaves it as is
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	t := decimal.NewFromFloat(tick)
	p := decimal.NewFromFloat(price).Div(t).Round(0).Mul(t)
	f, _ := p.Float64()
	return f
}

// RoundTo rounds v half away from zero to the given number of decimals
func RoundTo(v float64, places int) float64 {
	f, _ := decimal.NewFromFloat(v).Round(int32(places)).Float64()
	return f
}
