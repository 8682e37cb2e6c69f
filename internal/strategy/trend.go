// File: internal/strategy/trend.go
// ============================================
package strategy

import "crypto-signal-bot/pkg/types"

// ClassifyTrend reduces a filter-timeframe snapshot to UP, DOWN or FLAT.
// Snapshots whose EMAs are still warming up are FLAT.
func ClassifyTrend(s types.Snapshot) types.TrendState {
	if s.EMAFast <= 0 || s.EMASlow <= 0 {
		return types.TrendFlat
	}

	switch {
	case s.Close > s.EMASlow && s.EMAFast > s.EMASlow:
		return types.TrendUp
	case s.Close < s.EMASlow && s.EMAFast < s.EMASlow:
		return types.TrendDown
	default:
		return types.TrendFlat
	}
}
