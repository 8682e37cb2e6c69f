// File: internal/bybit/client.go
// ============================================
package bybit

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

const (
	CategoryLinear  = "linear"
	CategorySpot    = "spot"
	CategoryInverse = "inverse"
)

// v5 interval codes keyed by the bot's timeframe notation
var intervals = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"6h":  "360",
	"12h": "720",
	"1d":  "D",
	"1w":  "W",
}

// Client talks to the public Bybit v5 market endpoints
type Client struct {
	apiKey     string
	baseURL    string
	category   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(apiKey, category string, testnet bool, requestsPerSecond float64, timeout time.Duration) *Client {
	baseURL := "https://api.bybit.com"
	if testnet {
		baseURL = "https://api-testnet.bybit.com"
	}
	if category == "" {
		category = CategoryLinear
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		category:   category,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    market.NewLimiter(requestsPerSecond),
	}
}

// SetBaseURL points the client at another host (tests, demo trading)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrBadResponse, err)
	}
	if apiResp.RetCode != 0 {
		return nil, fmt.Errorf("API error %d: %s", apiResp.RetCode, apiResp.RetMsg)
	}
	return apiResp.Result, nil
}

// FetchCandles returns klines oldest first; Bybit itself lists newest first
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]types.Candle, error) {
	interval, ok := intervals[market.NormalizeTimeframe(timeframe)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", market.ErrUnknownTimeframe, timeframe)
	}

	params := url.Values{}
	params.Set("category", c.category)
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	result, err := c.get(ctx, "/v5/market/kline", params)
	if err != nil {
		return nil, fmt.Errorf("kline %s %s: %w", symbol, timeframe, err)
	}

	var klineResp struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(result, &klineResp); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrBadResponse, err)
	}
	if len(klineResp.List) == 0 {
		return nil, market.ErrNoCandles
	}

	candles := make([]types.Candle, 0, len(klineResp.List))
	for _, row := range klineResp.List {
		candle, err := parseKline(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return market.Normalize(candles), nil
}

// row layout: start, open, high, low, close, volume, turnover
func parseKline(row []string) (types.Candle, error) {
	if len(row) < 6 {
		return types.Candle{}, fmt.Errorf("%w: kline has %d fields", market.ErrBadResponse, len(row))
	}

	var v [6]float64
	for i := range v {
		f, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return types.Candle{}, fmt.Errorf("%w: kline field %d: %v", market.ErrBadResponse, i, err)
		}
		v[i] = f
	}

	return types.Candle{
		OpenTime: time.UnixMilli(int64(v[0])).UTC(),
		Open:     v[1],
		High:     v[2],
		Low:      v[3],
		Close:    v[4],
		Volume:   v[5],
	}, nil
}

// FetchTicker returns the last price and, for derivatives, the funding rate
func (c *Client) FetchTicker(ctx context.Context, symbol string) (types.Ticker, error) {
	params := url.Values{}
	params.Set("category", c.category)
	params.Set("symbol", symbol)

	result, err := c.get(ctx, "/v5/market/tickers", params)
	if err != nil {
		return types.Ticker{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}

	var tickerResp struct {
		List []struct {
			Symbol      string `json:"symbol"`
			LastPrice   string `json:"lastPrice"`
			FundingRate string `json:"fundingRate"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &tickerResp); err != nil {
		return types.Ticker{}, fmt.Errorf("%w: %v", market.ErrBadResponse, err)
	}
	if len(tickerResp.List) == 0 {
		return types.Ticker{}, fmt.Errorf("%w: empty ticker list for %s", market.ErrBadResponse, symbol)
	}

	t := tickerResp.List[0]
	last, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return types.Ticker{}, fmt.Errorf("%w: lastPrice %q", market.ErrBadResponse, t.LastPrice)
	}
	// spot tickers carry no fundingRate field
	funding, _ := strconv.ParseFloat(t.FundingRate, 64)

	return types.Ticker{
		Symbol:      t.Symbol,
		LastPrice:   last,
		FundingRate: funding,
		Timestamp:   time.Now(),
	}, nil
}
