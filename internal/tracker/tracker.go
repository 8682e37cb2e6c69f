// File: internal/tracker/tracker.go
// ============================================
package tracker

import (
	"sort"
	"time"

	"crypto-signal-bot/pkg/types"

	"github.com/google/uuid"
)

// Tracker follows alerted signals until price reaches target or stop.
// Not safe for concurrent use.
type Tracker struct {
	open map[string]*types.TrackedTrade
}

func New() *Tracker {
	return &Tracker{open: make(map[string]*types.TrackedTrade)}
}

// Open starts tracking a signal and returns the new trade
func (t *Tracker) Open(signal types.Signal, now time.Time) types.TrackedTrade {
	trade := &types.TrackedTrade{
		ID:       uuid.NewString(),
		Signal:   signal,
		State:    types.TradeOpen,
		OpenedAt: now,
	}
	t.open[trade.ID] = trade
	return *trade
}

// Tick checks every open trade against the latest price. Trades that hit
// a level are closed and dropped, so each produces exactly one event.
// When a single price satisfies both levels the target wins.
func (t *Tracker) Tick(price float64, now time.Time) []types.CloseEvent {
	if price <= 0 {
		return nil
	}

	var events []types.CloseEvent
	for id, trade := range t.open {
		state, hit := evaluate(trade.Signal, price)
		if !hit {
			continue
		}

		trade.State = state
		trade.ClosedAt = now
		trade.ClosePrice = price
		delete(t.open, id)

		realized := -trade.Signal.RiskPct
		if state == types.TradeClosedTarget {
			realized = trade.Signal.RewardPct
		}
		events = append(events, types.CloseEvent{
			Trade:       *trade,
			Price:       price,
			RealizedPct: realized,
		})
	}

	// map order is random; keep notifications in open order
	sort.Slice(events, func(i, j int) bool {
		return events[i].Trade.OpenedAt.Before(events[j].Trade.OpenedAt)
	})
	return events
}

func evaluate(s types.Signal, price float64) (types.TradeState, bool) {
	switch s.Side {
	case types.SideLong:
		if price >= s.Target {
			return types.TradeClosedTarget, true
		}
		if price <= s.Stop {
			return types.TradeClosedStop, true
		}
	case types.SideShort:
		if price <= s.Target {
			return types.TradeClosedTarget, true
		}
		if price >= s.Stop {
			return types.TradeClosedStop, true
		}
	}
	return "", false
}

func (t *Tracker) OpenCount() int {
	return len(t.open)
}

// OpenTrades returns copies of the open trades, oldest first
func (t *Tracker) OpenTrades() []types.TrackedTrade {
	out := make([]types.TrackedTrade, 0, len(t.open))
	for _, trade := range t.open {
		out = append(out, *trade)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}
