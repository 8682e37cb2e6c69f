// File: internal/market/market.go
// ============================================
package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"crypto-signal-bot/pkg/types"

	"golang.org/x/time/rate"
)

var (
	ErrNoCandles        = errors.New("no candles returned")
	ErrBadResponse      = errors.New("malformed exchange response")
	ErrUnknownTimeframe = errors.New("unknown timeframe")
)

// Provider is the read-only market data surface the bot polls
type Provider interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error)
	FetchTicker(ctx context.Context, symbol string) (types.Ticker, error)
}

// Normalize sorts candles ascending by open time and drops duplicate times,
// keeping the last occurrence (the most recently updated bar).
func Normalize(candles []types.Candle) []types.Candle {
	if len(candles) < 2 {
		return candles
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})

	out := candles[:0]
	for i, c := range candles {
		if i+1 < len(candles) && candles[i+1].OpenTime.Equal(c.OpenTime) {
			continue
		}
		out = append(out, c)
	}
	return out
}

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// NormalizeTimeframe lowercases the unit of a timeframe ("4H" becomes "4h").
// A trailing "M" is kept since it reads as months, not minutes.
func NormalizeTimeframe(tf string) string {
	tf = strings.TrimSpace(tf)
	if strings.HasSuffix(tf, "M") {
		return strings.ToLower(tf[:len(tf)-1]) + "M"
	}
	return strings.ToLower(tf)
}

// TimeframeDuration returns the bar length of a "5m"-style timeframe
func TimeframeDuration(tf string) (time.Duration, error) {
	d, ok := timeframes[NormalizeTimeframe(tf)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTimeframe, tf)
	}
	return d, nil
}

// NewLimiter builds the shared request limiter used by the exchange clients
func NewLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}
