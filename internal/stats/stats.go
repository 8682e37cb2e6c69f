// File: internal/stats/stats.go
// ============================================
package stats

import (
	"time"

	"crypto-signal-bot/pkg/types"

	"github.com/shopspring/decimal"
)

// Aggregator keeps today's counters. Not safe for concurrent use.
type Aggregator struct {
	daily     types.DailyStats
	precision int32
}

func NewAggregator(precision int) *Aggregator {
	if precision < 0 {
		precision = 0
	}
	return &Aggregator{precision: int32(precision)}
}

func (a *Aggregator) RecordEmitted() {
	a.daily.Emitted++
}

func (a *Aggregator) RecordClose(ev types.CloseEvent) {
	a.daily.TotalClosed++
	if ev.Win() {
		a.daily.Wins++
	} else {
		a.daily.Losses++
	}
	a.daily.ProfitPct += ev.RealizedPct
}

// WinRate is wins / closed * 100 rounded half away from zero; 0 with no closes
func (a *Aggregator) WinRate() float64 {
	if a.daily.TotalClosed == 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(a.daily.Wins)).
		Div(decimal.NewFromInt(int64(a.daily.TotalClosed))).
		Mul(decimal.NewFromInt(100)).
		Round(a.precision)
	f, _ := rate.Float64()
	return f
}

func (a *Aggregator) Snapshot() types.DailyStats {
	return a.daily
}

// Report builds the end of day summary from the current counters
func (a *Aggregator) Report(date time.Time, openTrades int) types.DailyReport {
	return types.DailyReport{
		Date:       date,
		Stats:      a.daily,
		WinRate:    a.WinRate(),
		OpenTrades: openTrades,
	}
}

func (a *Aggregator) Reset() {
	a.daily = types.DailyStats{}
}
