// File: internal/binance/client.go
// ============================================
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crypto-signal-bot/internal/market"
	"crypto-signal-bot/pkg/types"

	"golang.org/x/time/rate"
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(apiKey string, testnet bool, requestsPerSecond float64, timeout time.Duration) *Client {
	baseURL := "https://api.binance.com"
	if testnet {
		baseURL = "https://testnet.binance.vision"
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    market.NewLimiter(requestsPerSecond),
	}
}

// SetBaseURL points the client at another host (tests, mirrors)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

// FetchCandles returns klines for a "5m"-style interval, oldest first
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	interval = market.NormalizeTimeframe(interval)
	if _, err := market.TimeframeDuration(interval); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrBadResponse, err)
	}
	if len(rawKlines) == 0 {
		return nil, market.ErrNoCandles
	}

	candles := make([]types.Candle, 0, len(rawKlines))
	for _, k := range rawKlines {
		candle, err := parseKline(k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return market.Normalize(candles), nil
}

func parseKline(k []interface{}) (types.Candle, error) {
	if len(k) < 6 {
		return types.Candle{}, fmt.Errorf("%w: kline has %d fields", market.ErrBadResponse, len(k))
	}
	openMs, ok := k[0].(float64)
	if !ok {
		return types.Candle{}, fmt.Errorf("%w: kline open time %v", market.ErrBadResponse, k[0])
	}

	var fields [5]float64
	for i := range fields {
		s, ok := k[i+1].(string)
		if !ok {
			return types.Candle{}, fmt.Errorf("%w: kline field %d", market.ErrBadResponse, i+1)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return types.Candle{}, fmt.Errorf("%w: %v", market.ErrBadResponse, err)
		}
		fields[i] = v
	}

	return types.Candle{
		OpenTime: time.UnixMilli(int64(openMs)).UTC(),
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}

// FetchTicker returns the last traded price. Spot has no funding rate.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return types.Ticker{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}

	var priceResp struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return types.Ticker{}, fmt.Errorf("%w: %v", market.ErrBadResponse, err)
	}

	price, err := strconv.ParseFloat(priceResp.Price, 64)
	if err != nil {
		return types.Ticker{}, fmt.Errorf("%w: price %q", market.ErrBadResponse, priceResp.Price)
	}

	return types.Ticker{
		Symbol:    symbol,
		LastPrice: price,
		Timestamp: time.Now(),
	}, nil
}
