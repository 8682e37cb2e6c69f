// File: internal/config/config.go
// ============================================
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"crypto-signal-bot/internal/market"
	"crypto-signal-bot/pkg/types"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Load
var ErrInvalid = errors.New("invalid config")

// Load reads .env (optional), the YAML file at path, applies environment
// overrides and defaults, then validates the result.
func Load(path string) (*types.Config, error) {
	// a missing .env is normal in containers
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse is Load without the filesystem, used by tests. The YAML is decoded
// over Default(), so absent keys keep their defaults and explicit zeros stay.
func Parse(data []byte) (*types.Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)
	normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Override with environment variables
func applyEnv(cfg *types.Config) {
	if name := os.Getenv("EXCHANGE"); name != "" {
		cfg.Exchange.Name = name
	}

	// market endpoints are public; the key only lifts the rate tier
	if strings.ToLower(cfg.Exchange.Name) == "binance" {
		setFromEnv(&cfg.Exchange.APIKey, "BINANCE_API_KEY")
	} else {
		setFromEnv(&cfg.Exchange.APIKey, "BYBIT_API_KEY")
	}
	if testnet := os.Getenv("EXCHANGE_TESTNET"); testnet != "" {
		cfg.Exchange.Testnet = testnet == "true" || testnet == "1"
	}

	setFromEnv(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setFromEnv(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setFromEnv(&cfg.Journal.DSN, "JOURNAL_DSN")
	setFromEnv(&cfg.Scan.Symbol, "SYMBOL")
	setFromEnv(&cfg.Logging.Level, "LOG_LEVEL")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Default returns the bot's stock settings
func Default() types.Config {
	var cfg types.Config

	cfg.Exchange.Name = "bybit"
	cfg.Exchange.Category = "linear"
	cfg.Exchange.RateLimit = 5
	cfg.Exchange.TimeoutSec = 10

	cfg.Journal.Table = "signal_log"

	cfg.Logging.Level = "info"
	cfg.Logging.MaxSizeMB = 10
	cfg.Logging.MaxBackups = 5
	cfg.Logging.MaxAgeDays = 30

	cfg.Scan.Symbol = "BTCUSDT"
	cfg.Scan.Pairs = []types.TimeframePair{
		{Work: "5m", Filter: "1h"},
		{Work: "15m", Filter: "4h"},
		{Work: "1h", Filter: "1d"},
	}
	cfg.Scan.PivotTimeframe = "1d"
	cfg.Scan.CandleLimit = 250
	cfg.Scan.PivotLimit = 20
	cfg.Scan.PairDelay = time.Second
	cfg.Scan.CycleInterval = time.Minute

	cfg.Report.At = "23:00"
	cfg.Report.Precision = 1

	cfg.Indicators = DefaultIndicators()
	cfg.Strategy = DefaultStrategy()
	return cfg
}

// normalize canonicalises values that have more than one spelling
func normalize(cfg *types.Config) {
	cfg.Exchange.Name = strings.ToLower(strings.TrimSpace(cfg.Exchange.Name))
	cfg.Exchange.Category = strings.ToLower(cfg.Exchange.Category)

	// Telegram is useless without both token and chat
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		cfg.Telegram.Enabled = false
	}

	cfg.Scan.Symbol = normalizeSymbol(cfg.Scan.Symbol)
	for i := range cfg.Scan.Pairs {
		cfg.Scan.Pairs[i].Work = market.NormalizeTimeframe(cfg.Scan.Pairs[i].Work)
		cfg.Scan.Pairs[i].Filter = market.NormalizeTimeframe(cfg.Scan.Pairs[i].Filter)
	}
	switch tf := market.NormalizeTimeframe(cfg.Scan.PivotTimeframe); tf {
	case "none", "off":
		cfg.Scan.PivotTimeframe = ""
	default:
		cfg.Scan.PivotTimeframe = tf
	}
}

// DefaultIndicators returns the stock indicator periods
func DefaultIndicators() types.IndicatorSettings {
	return types.IndicatorSettings{
		EMAFast:      20,
		EMASlow:      50,
		EMATrend:     200,
		RSIPeriod:    14,
		ADXPeriod:    14,
		ATRPeriod:    14,
		BBPeriod:     20,
		BBDeviation:  2.0,
		VolumePeriod: 20,
	}
}

// DefaultStrategy returns the stock thresholds
func DefaultStrategy() types.StrategyConfig {
	return types.StrategyConfig{
		StopATRMult:       1.8,
		TargetATRMult:     3.5,
		MinTargetFraction: 0.008,
		MaxRiskFraction:   0.04,
		MinRewardRisk:     1.2,
		VolumeFactor:      1.25,
		ADXFloor:          18,
		RSILongMax:        75,
		RSIShortMin:       25,
		MinConfidence:     55,
		Scoring: types.ScoringConfig{
			TrendPoints:        25,
			CrossoverPoints:    20,
			EMATrendPoints:     10,
			VolumePoints:       15,
			RSIPoints:          15,
			ADXPoints:          15,
			VolatilityPoints:   10,
			PivotPoints:        10,
			RSIStretchPenalty:  15,
			ExtensionPenalty:   10,
			VolumeStrongFactor: 1.5,
			RSIOptimalLow:      40,
			RSIOptimalHigh:     60,
			ADXStrong:          25,
			RSIStretchedHigh:   65,
			RSIStretchedLow:    35,
			MaxATRDistance:     0.35,
		},
	}
}

// Validate rejects settings the detector cannot work with
func Validate(cfg *types.Config) error {
	switch cfg.Exchange.Name {
	case "bybit", "binance":
	default:
		return fmt.Errorf("%w: unknown exchange %q", ErrInvalid, cfg.Exchange.Name)
	}
	if cfg.Exchange.TimeoutSec <= 0 {
		return fmt.Errorf("%w: timeout_seconds must be positive", ErrInvalid)
	}

	if cfg.Scan.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalid)
	}
	if len(cfg.Scan.Pairs) == 0 {
		return fmt.Errorf("%w: no timeframe pairs", ErrInvalid)
	}
	if cfg.Scan.CandleLimit < 2 || cfg.Scan.PivotLimit < 0 {
		return fmt.Errorf("%w: candle_limit must be at least 2", ErrInvalid)
	}
	if cfg.Scan.CycleInterval <= 0 || cfg.Scan.PairDelay < 0 {
		return fmt.Errorf("%w: cycle_interval must be positive", ErrInvalid)
	}

	ind := cfg.Indicators
	for name, period := range map[string]int{
		"ema_fast": ind.EMAFast, "ema_slow": ind.EMASlow, "ema_trend": ind.EMATrend,
		"rsi_period": ind.RSIPeriod, "adx_period": ind.ADXPeriod, "atr_period": ind.ATRPeriod,
		"bb_period": ind.BBPeriod, "volume_ma_period": ind.VolumePeriod,
	} {
		if period < 1 {
			return fmt.Errorf("%w: %s must be at least 1", ErrInvalid, name)
		}
	}

	for i, p := range cfg.Scan.Pairs {
		if p.Work == "" || p.Filter == "" {
			return fmt.Errorf("%w: pair %d needs both work and filter timeframes", ErrInvalid, i)
		}
		for _, tf := range []string{p.Work, p.Filter} {
			if _, err := market.TimeframeDuration(tf); err != nil {
				return fmt.Errorf("%w: pair %d: %v", ErrInvalid, i, err)
			}
		}
	}
	if tf := cfg.Scan.PivotTimeframe; tf != "" {
		if _, err := market.TimeframeDuration(tf); err != nil {
			return fmt.Errorf("%w: pivot_timeframe: %v", ErrInvalid, err)
		}
	}

	s := cfg.Strategy
	if s.StopATRMult <= 0 || s.TargetATRMult <= 0 || s.MinTargetFraction < 0 {
		return fmt.Errorf("%w: stop/target multipliers must be positive", ErrInvalid)
	}
	if s.MaxRiskFraction <= 0 || s.MaxRiskFraction >= 1 {
		return fmt.Errorf("%w: max_risk_fraction must be in (0, 1)", ErrInvalid)
	}
	if s.MinConfidence < 0 || s.MinConfidence > 100 {
		return fmt.Errorf("%w: min_confidence must be within 0..100", ErrInvalid)
	}
	if s.PriceTick < 0 {
		return fmt.Errorf("%w: price_tick must not be negative", ErrInvalid)
	}

	if cfg.Report.Precision < 0 {
		return fmt.Errorf("%w: win_rate_precision must not be negative", ErrInvalid)
	}
	if _, _, err := ReportClock(cfg); err != nil {
		return err
	}
	if off := cfg.Report.UTCOffsetHours; off < -12 || off > 14 {
		return fmt.Errorf("%w: utc_offset_hours %d", ErrInvalid, off)
	}
	return nil
}

// ReportClock parses report.at into hour and minute
func ReportClock(cfg *types.Config) (hour, minute int, err error) {
	t, err := time.Parse("15:04", cfg.Report.At)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: report time %q: %v", ErrInvalid, cfg.Report.At, err)
	}
	return t.Hour(), t.Minute(), nil
}

// ReportLocation is the fixed zone the daily boundary is evaluated in
func ReportLocation(cfg *types.Config) *time.Location {
	offset := cfg.Report.UTCOffsetHours
	return time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*3600)
}

// normalizeSymbol turns "BTC/USDT" or "btc-usdt" into "BTCUSDT"
func normalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("/", "", "-", "", ":USDT", "").Replace(s)
}
