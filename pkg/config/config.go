package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/risk"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/internal/venue"
)

// EnvPrefix prefixes every environment override, e.g. ROUTER_TRACKER_DAILY_LIMIT.
const EnvPrefix = "ROUTER"

type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	EnginePort     int           `mapstructure:"engine_port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RiskConfig struct {
	MaxOrderNotional string   `mapstructure:"max_order_notional"`
	MaxOrderQuantity string   `mapstructure:"max_order_quantity"`
	AllowedSymbols   []string `mapstructure:"allowed_symbols"`
	AllowedVenues    []string `mapstructure:"allowed_venues"`
}

type TrackerConfig struct {
	DailyLimit string `mapstructure:"daily_limit"`
	Mode       string `mapstructure:"mode"`
	Timezone   string `mapstructure:"timezone"`
}

type VenueConfig struct {
	ReferencePrices  map[string]string `mapstructure:"reference_prices"`
	FillModel        string            `mapstructure:"fill_model"`
	PartialFillRatio string            `mapstructure:"partial_fill_ratio"`
	SlippageBps      string            `mapstructure:"slippage_bps"`
	Seed             int64             `mapstructure:"seed"`
	LatencyMin       time.Duration     `mapstructure:"latency_min"`
	LatencyMax       time.Duration     `mapstructure:"latency_max"`
	LiveCollarBps    string            `mapstructure:"live_collar_bps"`
}

type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TraceConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type EngineConfig struct {
	RouterURL        string           `mapstructure:"router_url"`
	RouterTimeout    time.Duration    `mapstructure:"router_timeout"`
	RouterToken      string           `mapstructure:"router_token"`
	RecentExecutions int              `mapstructure:"recent_executions"`
	StrategiesFile   string           `mapstructure:"strategies_file"`
	DBPath           string           `mapstructure:"db_path"`
	Indicators       IndicatorsConfig `mapstructure:"indicators"`
}

// IndicatorsConfig sizes the rolling indicators derived for strategies.
type IndicatorsConfig struct {
	SMAShort  int `mapstructure:"sma_short"`
	SMALong   int `mapstructure:"sma_long"`
	RSIPeriod int `mapstructure:"rsi_period"`
	Window    int `mapstructure:"window"`
}

// Config holds settings for both the router and the strategy engine.
type Config struct {
	ServiceName string        `mapstructure:"service_name"`
	Env         string        `mapstructure:"env"`
	LogLevel    string        `mapstructure:"log_level"`
	MetricsPath string        `mapstructure:"metrics_path"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	Auth        AuthConfig    `mapstructure:"auth"`
	Risk        RiskConfig    `mapstructure:"risk"`
	Tracker     TrackerConfig `mapstructure:"tracker"`
	Venue       VenueConfig   `mapstructure:"venue"`
	Alpaca      AlpacaConfig  `mapstructure:"alpaca"`
	Kafka       KafkaConfig   `mapstructure:"kafka"`
	Trace       TraceConfig   `mapstructure:"trace"`
	Engine      EngineConfig  `mapstructure:"engine"`
}

// Load reads .env (if present), then the optional YAML file at path, then
// ROUTER_* environment overrides.
func Load(path string) (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	_ = v.BindEnv("trace.endpoint", EnvPrefix+"_TRACE_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "order-router")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.engine_port", 8081)
	v.SetDefault("http.request_timeout", "10s")
	v.SetDefault("http.rate_limit", 20)
	v.SetDefault("http.rate_burst", 50)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("risk.max_order_notional", "100000")
	v.SetDefault("risk.max_order_quantity", "0")
	v.SetDefault("risk.allowed_symbols", []string{})
	v.SetDefault("risk.allowed_venues", []string{})

	v.SetDefault("tracker.daily_limit", "1000000")
	v.SetDefault("tracker.mode", "paper")
	v.SetDefault("tracker.timezone", "UTC")

	v.SetDefault("venue.reference_prices", map[string]string{})
	v.SetDefault("venue.fill_model", "full")
	v.SetDefault("venue.partial_fill_ratio", "0.5")
	v.SetDefault("venue.slippage_bps", "0")
	v.SetDefault("venue.seed", 0)
	v.SetDefault("venue.latency_min", "0s")
	v.SetDefault("venue.latency_max", "0s")
	v.SetDefault("venue.live_collar_bps", "100")

	v.SetDefault("alpaca.api_key", "")
	v.SetDefault("alpaca.api_secret", "")
	v.SetDefault("alpaca.base_url", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "order-router.events")

	v.SetDefault("trace.endpoint", "")

	v.SetDefault("engine.router_url", "http://localhost:8080")
	v.SetDefault("engine.router_timeout", "5s")
	v.SetDefault("engine.router_token", "")
	v.SetDefault("engine.recent_executions", 50)
	v.SetDefault("engine.strategies_file", "strategies.yaml")
	v.SetDefault("engine.db_path", "")
	v.SetDefault("engine.indicators.sma_short", 10)
	v.SetDefault("engine.indicators.sma_long", 30)
	v.SetDefault("engine.indicators.rsi_period", 14)
	v.SetDefault("engine.indicators.window", 200)
}

// Rules converts the risk section into evaluator rules.
func (c *Config) Rules() (risk.Rules, error) {
	notional, err := parseAmount("risk.max_order_notional", c.Risk.MaxOrderNotional)
	if err != nil {
		return risk.Rules{}, err
	}
	qty, err := parseAmount("risk.max_order_quantity", c.Risk.MaxOrderQuantity)
	if err != nil {
		return risk.Rules{}, err
	}
	return risk.Rules{
		MaxOrderNotional: notional,
		MaxOrderQuantity: qty,
		AllowedSymbols:   upper(c.Risk.AllowedSymbols),
		AllowedVenues:    lower(c.Risk.AllowedVenues),
	}, nil
}

// TrackerSettings returns the daily limit, mode and trading-day location.
func (c *Config) TrackerSettings() (decimal.Decimal, risk.Mode, *time.Location, error) {
	limit, err := parseAmount("tracker.daily_limit", c.Tracker.DailyLimit)
	if err != nil {
		return decimal.Zero, "", nil, err
	}
	mode, err := risk.ParseMode(c.Tracker.Mode)
	if err != nil {
		return decimal.Zero, "", nil, err
	}
	tz := c.Tracker.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return decimal.Zero, "", nil, fmt.Errorf("tracker.timezone: %w", err)
	}
	return limit, mode, loc, nil
}

func (c *Config) SimConfig() (venue.SimConfig, error) {
	model, err := venue.ParseFillModel(c.Venue.FillModel)
	if err != nil {
		return venue.SimConfig{}, err
	}
	ratio, err := parseAmount("venue.partial_fill_ratio", c.Venue.PartialFillRatio)
	if err != nil {
		return venue.SimConfig{}, err
	}
	bps, err := parseAmount("venue.slippage_bps", c.Venue.SlippageBps)
	if err != nil {
		return venue.SimConfig{}, err
	}
	return venue.SimConfig{
		FillModel:        model,
		PartialFillRatio: ratio,
		SlippageBps:      bps,
		Seed:             c.Venue.Seed,
		LatencyMin:       c.Venue.LatencyMin,
		LatencyMax:       c.Venue.LatencyMax,
	}, nil
}

// LiveCollar returns venue.live_collar_bps as a fraction.
func (c *Config) LiveCollar() (decimal.Decimal, error) {
	bps, err := parseAmount("venue.live_collar_bps", c.Venue.LiveCollarBps)
	if err != nil {
		return decimal.Zero, err
	}
	if bps.IsNegative() {
		return decimal.Zero, fmt.Errorf("venue.live_collar_bps: must not be negative, got %s", bps)
	}
	return bps.Div(decimal.NewFromInt(10_000)), nil
}

// ReferencePrices parses venue.reference_prices, keyed by upper-case symbol.
func (c *Config) ReferencePrices() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.Venue.ReferencePrices))
	for sym, raw := range c.Venue.ReferencePrices {
		price, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || !price.IsPositive() {
			return nil, fmt.Errorf("venue.reference_prices.%s: invalid price %q", sym, raw)
		}
		out[strings.ToUpper(sym)] = price
	}
	return out, nil
}

func parseAmount(key, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return d, nil
}

func upper(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, strings.ToUpper(t))
		}
	}
	return out
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, strings.ToLower(t))
		}
	}
	return out
}
