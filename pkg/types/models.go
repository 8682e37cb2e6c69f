// File: pkg/types/models.go
// ============================================
package types

import "time"

// Config represents the bot configuration
type Config struct {
	Exchange struct {
		Name       string  `yaml:"name"` // "bybit" or "binance"
		APIKey     string  `yaml:"api_key"`
		Testnet    bool    `yaml:"testnet"`
		Category   string  `yaml:"category"` // bybit only: linear, spot, inverse
		RateLimit  float64 `yaml:"requests_per_second"`
		TimeoutSec int     `yaml:"timeout_seconds"`
	} `yaml:"exchange"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		Enabled  bool   `yaml:"enabled"`
	} `yaml:"telegram"`

	Journal struct {
		DSN   string `yaml:"dsn"`
		Table string `yaml:"table"`
	} `yaml:"journal"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`

	Scan struct {
		Symbol         string          `yaml:"symbol"`
		Pairs          []TimeframePair `yaml:"pairs"`
		PivotTimeframe string          `yaml:"pivot_timeframe"`
		CandleLimit    int             `yaml:"candle_limit"`
		PivotLimit     int             `yaml:"pivot_limit"`
		PairDelay      time.Duration   `yaml:"pair_delay"`
		CycleInterval  time.Duration   `yaml:"cycle_interval"`
	} `yaml:"scan"`

	Report struct {
		At             string `yaml:"at"` // HH:MM wall clock
		UTCOffsetHours int    `yaml:"utc_offset_hours"`
		Precision      int    `yaml:"win_rate_precision"`
	} `yaml:"report"`

	Indicators IndicatorSettings `yaml:"indicators"`
	Strategy   StrategyConfig    `yaml:"strategy"`
}

// TimeframePair couples the fast timeframe signals are taken on with the
// slower timeframe that gates their direction.
type TimeframePair struct {
	Work   string `yaml:"work"`
	Filter string `yaml:"filter"`
}

func (p TimeframePair) String() string {
	return p.Work + "/" + p.Filter
}

// IndicatorSettings holds the periods fed to the indicator provider
type IndicatorSettings struct {
	EMAFast      int     `yaml:"ema_fast"`
	EMASlow      int     `yaml:"ema_slow"`
	EMATrend     int     `yaml:"ema_trend"`
	RSIPeriod    int     `yaml:"rsi_period"`
	ADXPeriod    int     `yaml:"adx_period"`
	ATRPeriod    int     `yaml:"atr_period"`
	BBPeriod     int     `yaml:"bb_period"`
	BBDeviation  float64 `yaml:"bb_deviation"`
	VolumePeriod int     `yaml:"volume_ma_period"`
}

// StrategyConfig is the single threshold record the signal detector runs on
type StrategyConfig struct {
	StopATRMult       float64 `yaml:"stop_atr_mult"`
	TargetATRMult     float64 `yaml:"target_atr_mult"`
	MinTargetFraction float64 `yaml:"min_target_fraction"`
	MaxRiskFraction   float64 `yaml:"max_risk_fraction"`
	MinRewardRisk     float64 `yaml:"min_reward_risk"`
	VolumeFactor      float64 `yaml:"volume_factor"`
	ADXFloor          float64 `yaml:"adx_floor"`
	RSILongMax        float64 `yaml:"rsi_long_max"`  // LONG rejected at or above
	RSIShortMin       float64 `yaml:"rsi_short_min"` // SHORT rejected at or below
	MinConfidence     int     `yaml:"min_confidence"`
	PriceTick         float64 `yaml:"price_tick"`

	Scoring ScoringConfig `yaml:"scoring"`
}

// ScoringConfig holds the point value of every confidence factor and the
// bands that decide whether a factor applies.
type ScoringConfig struct {
	TrendPoints       int `yaml:"trend_points"`
	CrossoverPoints   int `yaml:"crossover_points"`
	EMATrendPoints    int `yaml:"ema_trend_points"`
	VolumePoints      int `yaml:"volume_points"`
	RSIPoints         int `yaml:"rsi_points"`
	ADXPoints         int `yaml:"adx_points"`
	VolatilityPoints  int `yaml:"volatility_points"`
	PivotPoints       int `yaml:"pivot_points"`
	RSIStretchPenalty int `yaml:"rsi_stretch_penalty"`
	ExtensionPenalty  int `yaml:"extension_penalty"`

	VolumeStrongFactor float64 `yaml:"volume_strong_factor"`
	RSIOptimalLow      float64 `yaml:"rsi_optimal_low"`
	RSIOptimalHigh     float64 `yaml:"rsi_optimal_high"`
	ADXStrong          float64 `yaml:"adx_strong"`
	RSIStretchedHigh   float64 `yaml:"rsi_stretched_high"`
	RSIStretchedLow    float64 `yaml:"rsi_stretched_low"`
	MaxATRDistance     float64 `yaml:"max_atr_distance"`
}

// Candle is one OHLCV bar; OpenTime is unique and ascending within a series
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Ticker is the live quote used for lifecycle tracking
type Ticker struct {
	Symbol      string
	LastPrice   float64
	FundingRate float64 // 0 on venues without perpetual funding
	Timestamp   time.Time
}

// Snapshot is the indicator row attached to one candle
type Snapshot struct {
	Candle
	EMAFast  float64
	EMASlow  float64
	EMATrend float64
	RSI      float64
	ADX      float64
	ATR      float64
	BBUpper  float64
	BBMid    float64
	BBLower  float64
	VolumeMA float64
}

// BandWidth is the Bollinger width relative to the middle band
func (s Snapshot) BandWidth() float64 {
	if s.BBMid == 0 {
		return 0
	}
	return (s.BBUpper - s.BBLower) / s.BBMid
}

type TrendState string

const (
	TrendUp   TrendState = "UP"
	TrendDown TrendState = "DOWN"
	TrendFlat TrendState = "FLAT"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// RiskMetrics are informational numbers shown with an alert, never gating
type RiskMetrics struct {
	ATRDistance   float64 // |close - EMA fast| in ATR units
	Extended      bool
	Pivot         float64 // 0 when no pivot series was available
	EnergyUsedPct float64 // today's range as % of daily ATR, 0 when unknown
	DayMove       float64 // close - day open
	FundingRate   float64
}

type Signal struct {
	ID              string
	Symbol          string
	Side            Side
	WorkTimeframe   string
	FilterTimeframe string
	CandleTime      time.Time
	Entry           float64
	Stop            float64
	Target          float64
	RiskPct         float64 // |entry - stop| / entry * 100
	RewardPct       float64 // |target - entry| / entry * 100
	RewardRisk      float64
	Confidence      int
	Reasons         []string
	Metrics         RiskMetrics
}

type TradeState string

const (
	TradeOpen         TradeState = "OPEN"
	TradeClosedTarget TradeState = "CLOSED_TARGET"
	TradeClosedStop   TradeState = "CLOSED_STOP"
)

// TrackedTrade is an alerted signal followed until it hits target or stop
type TrackedTrade struct {
	ID         string
	Signal     Signal
	State      TradeState
	OpenedAt   time.Time
	ClosedAt   time.Time
	ClosePrice float64
}

// CloseEvent is produced exactly once per tracked trade
type CloseEvent struct {
	Trade       TrackedTrade
	Price       float64
	RealizedPct float64 // +RewardPct on target, -RiskPct on stop
}

func (e CloseEvent) Win() bool {
	return e.Trade.State == TradeClosedTarget
}

type DailyStats struct {
	Emitted     int
	TotalClosed int
	Wins        int
	Losses      int
	ProfitPct   float64
}

type DailyReport struct {
	Date       time.Time
	Stats      DailyStats
	WinRate    float64
	OpenTrades int
}
