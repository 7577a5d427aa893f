package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all trading and application parameters. Treat a loaded
// Config as immutable: regime overrides go through WithOverride, which
// returns a modified copy.
type Config struct {
	// Data settings
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`

	// Moving averages
	EMA20Length  int `yaml:"ema_20_length"`
	EMA50Length  int `yaml:"ema_50_length"`
	EMA200Length int `yaml:"ema_200_length"`

	// RSI
	RSILength     int     `yaml:"rsi_length"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	RSIOversold   float64 `yaml:"rsi_oversold"`

	// MACD
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`

	// Trading rules
	MinBarsGap        int  `yaml:"min_bars_gap"`
	AllowLongTrades   bool `yaml:"allow_long_trades"`
	AllowShortTrades  bool `yaml:"allow_short_trades"`
	RequireConfluence bool `yaml:"require_confluence"`

	// ADX regime filter
	ADXLength            int     `yaml:"adx_length"`
	ADXRangingThreshold  float64 `yaml:"adx_ranging_threshold"`
	ADXExtremeThreshold  float64 `yaml:"adx_extreme_threshold"`
	EnableRegimeFilter   bool    `yaml:"enable_regime_filter"`
	RegimeLookbackDays   int     `yaml:"regime_lookback_days"`
	RegimeCheckBars      int     `yaml:"regime_check_bars"`
	MinTrendStrengthPerc float64 `yaml:"min_trend_strength_perc"`

	// Risk management
	ATRLength            int     `yaml:"atr_length"`
	StopLossMultiplier   float64 `yaml:"stop_loss_multiplier"`
	TakeProfit1Mult      float64 `yaml:"take_profit_1_multiplier"`
	TakeProfit2Mult      float64 `yaml:"take_profit_2_multiplier"`
	TrailingStopFactor   float64 `yaml:"trailing_stop_factor"`
	TrailingActivation   float64 `yaml:"trailing_activation"`
	DynamicTrailing      bool    `yaml:"dynamic_trailing"`
	PositionSizeFraction float64 `yaml:"position_size_fraction"`

	// Market stress exclusion
	CrashDropPerc      float64 `yaml:"crash_drop_perc"`
	VolumeSpikeMult    float64 `yaml:"volume_spike_mult"`
	StressTightenPerc  float64 `yaml:"stress_tighten_perc"`
	InitialPaperAmount float64 `yaml:"initial_paper_amount"`

	// Exchange connectivity
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
	RESTHost  string `yaml:"rest_host"`
	WSHost    string `yaml:"ws_host"`

	// ClickHouse store
	ClickHouseAddr     string `yaml:"clickhouse_addr"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
	ClickHouseUser     string `yaml:"clickhouse_user"`
	ClickHousePassword string `yaml:"-"`

	// Telegram notifications
	TelegramToken  string `yaml:"-"`
	TelegramChatID string `yaml:"-"`
	EnableTelegram bool   `yaml:"enable_telegram"`

	// Logging
	LogFile       string `yaml:"log_file"`
	LogMaxSize    int    `yaml:"log_max_size"` // megabytes
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAge     int    `yaml:"log_max_age"` // days
	LogCompress   bool   `yaml:"log_compress"`
	LogLevel      int    `yaml:"log_level"` // 0=DEBUG 1=INFO 2=WARNING 3=ERROR

	// Status server
	StatusAddr string `yaml:"status_addr"`
}

// LoadConfig loads configuration from environment variables or uses defaults
func LoadConfig() *Config {
	cfg := Default()
	cfg.Symbol = getEnv("TRADER_SYMBOL", cfg.Symbol)
	cfg.Interval = getEnv("TRADER_INTERVAL", cfg.Interval)
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.APISecret = getEnv("BINANCE_API_SECRET", "")
	cfg.RESTHost = getEnv("BINANCE_REST_HOST", cfg.RESTHost)
	cfg.WSHost = getEnv("BINANCE_WS_HOST", cfg.WSHost)
	cfg.ClickHouseAddr = getEnv("CLICKHOUSE_ADDR", cfg.ClickHouseAddr)
	cfg.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", cfg.ClickHouseDatabase)
	cfg.ClickHouseUser = getEnv("CLICKHOUSE_USER", cfg.ClickHouseUser)
	cfg.ClickHousePassword = getEnv("CLICKHOUSE_PASSWORD", "")
	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")
	cfg.EnableTelegram = getEnvAsBool("ENABLE_TELEGRAM", cfg.EnableTelegram)
	cfg.PositionSizeFraction = getEnvAsFloat("POSITION_SIZE_FRACTION", cfg.PositionSizeFraction)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.StatusAddr = getEnv("STATUS_ADDR", cfg.StatusAddr)
	return cfg
}

// Default returns the baseline swing-trading parameter set
func Default() *Config {
	return &Config{
		Symbol:   "BTCUSDT",
		Interval: "1d",

		EMA20Length:  20,
		EMA50Length:  50,
		EMA200Length: 200,

		RSILength:     14,
		RSIOverbought: 75,
		RSIOversold:   30,

		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,

		MinBarsGap:        4,
		AllowLongTrades:   true,
		AllowShortTrades:  true,
		RequireConfluence: false,

		ADXLength:            14,
		ADXRangingThreshold:  18,
		ADXExtremeThreshold:  35,
		EnableRegimeFilter:   true,
		RegimeLookbackDays:   90,
		RegimeCheckBars:      0, // 0 means weekly, derived from the interval
		MinTrendStrengthPerc: 0.45,

		ATRLength:            14,
		StopLossMultiplier:   3.0,
		TakeProfit1Mult:      4.0,
		TakeProfit2Mult:      8.0,
		TrailingStopFactor:   0.55,
		TrailingActivation:   0.025,
		DynamicTrailing:      true,
		PositionSizeFraction: 0.015,

		CrashDropPerc:      5.0,
		VolumeSpikeMult:    4.0,
		StressTightenPerc:  0.6,
		InitialPaperAmount: 10000,

		RESTHost: "https://api.binance.com",
		WSHost:   "wss://stream.binance.com:9443",

		ClickHouseAddr:     "127.0.0.1:9000",
		ClickHouseDatabase: "trader",
		ClickHouseUser:     "default",

		EnableTelegram: false,

		LogFile:       "logs/pro_trader.log",
		LogMaxSize:    10,
		LogMaxBackups: 5,
		LogMaxAge:     30,
		LogCompress:   true,
		LogLevel:      1,

		StatusAddr: "127.0.0.1:6061",
	}
}

// Validate checks parameter combinations before any run starts
func (c *Config) Validate() error {
	if !(15 <= c.RSIOversold && c.RSIOversold <= 40) {
		return fmt.Errorf("rsi oversold must be between 15 and 40, got %.1f", c.RSIOversold)
	}
	if !(60 <= c.RSIOverbought && c.RSIOverbought <= 85) {
		return fmt.Errorf("rsi overbought must be between 60 and 85, got %.1f", c.RSIOverbought)
	}
	if c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("rsi oversold (%.1f) must be less than overbought (%.1f)", c.RSIOversold, c.RSIOverbought)
	}
	if c.MinBarsGap < 1 {
		return fmt.Errorf("minimum bars gap must be at least 1, got %d", c.MinBarsGap)
	}
	if c.StopLossMultiplier <= 0 {
		return fmt.Errorf("stop loss multiplier must be positive, got %.2f", c.StopLossMultiplier)
	}
	if c.TakeProfit1Mult <= 0 {
		return fmt.Errorf("take profit 1 multiplier must be positive, got %.2f", c.TakeProfit1Mult)
	}
	if c.TakeProfit2Mult <= 0 {
		return fmt.Errorf("take profit 2 multiplier must be positive, got %.2f", c.TakeProfit2Mult)
	}
	if c.ADXRangingThreshold >= c.ADXExtremeThreshold {
		return fmt.Errorf("adx ranging threshold (%.1f) must be below extreme threshold (%.1f)",
			c.ADXRangingThreshold, c.ADXExtremeThreshold)
	}
	return nil
}

// Override carries the parameters a regime is allowed to change. Nil
// pointer fields leave the base value untouched.
type Override struct {
	AllowLongTrades    *bool
	AllowShortTrades   *bool
	StopLossMultiplier *float64
	TakeProfit1Mult    *float64
	TakeProfit2Mult    *float64
	MinBarsGap         *int
}

// WithOverride returns a copy of the config with the override applied.
// The receiver is never modified.
func (c *Config) WithOverride(o Override) *Config {
	out := *c
	if o.AllowLongTrades != nil {
		out.AllowLongTrades = *o.AllowLongTrades
	}
	if o.AllowShortTrades != nil {
		out.AllowShortTrades = *o.AllowShortTrades
	}
	if o.StopLossMultiplier != nil {
		out.StopLossMultiplier = *o.StopLossMultiplier
	}
	if o.TakeProfit1Mult != nil {
		out.TakeProfit1Mult = *o.TakeProfit1Mult
	}
	if o.TakeProfit2Mult != nil {
		out.TakeProfit2Mult = *o.TakeProfit2Mult
	}
	if o.MinBarsGap != nil {
		out.MinBarsGap = *o.MinBarsGap
	}
	return &out
}

// getEnvAsBool gets an environment variable as a boolean value
func getEnvAsBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	switch value {
	case "true", "1", "yes", "on", "True", "TRUE":
		return true
	default:
		return false
	}
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
