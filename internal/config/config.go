// Package config defines all configuration for the trading engine.
// Everything is read from environment variables; there are no hardcoded
// values and no config file (a .env file, if present, is loaded by main
// before this package runs).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"trading-engine/internal/clock"
)

// Config is the engine's complete configuration.
type Config struct {
	MarketOpen  string // "HH:MM" local; runners start at this time
	MarketClose string // "HH:MM" local; shutdown triggers at the next occurrence

	TickInterval    time.Duration // cadence between simulated ticks
	PriceVolatility float64       // uniform half-width of per-tick return
	PriceSeeds      map[string]decimal.Decimal

	StrategiesFile string

	LogLevel  string // DEBUG, INFO, WARN, ERROR
	LogFormat string // json or text

	HealthInterval       time.Duration
	SubscriptionCapacity int
	ShutdownGrace        time.Duration

	StatusAddr string // listen address for the status API; empty disables it
}

// Load reads configuration from the environment, applying defaults for
// anything unset. Interval variables are decimal seconds.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("MARKET_OPEN", "09:15")
	v.SetDefault("MARKET_CLOSE", "15:20")
	v.SetDefault("TICK_INTERVAL", 1.0)
	v.SetDefault("PRICE_VOLATILITY", 0.002)
	v.SetDefault("PRICE_SEEDS", "NIFTY=20100,BANKNIFTY=45000,FINNIFTY=19500")
	v.SetDefault("STRATEGIES_FILE", "strategies.json")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("HEALTH_INTERVAL", 30.0)
	v.SetDefault("SUBSCRIPTION_CAPACITY", 64)
	v.SetDefault("SHUTDOWN_GRACE", 5.0)
	v.SetDefault("STATUS_ADDR", "")

	seeds, err := parseSeeds(v.GetString("PRICE_SEEDS"))
	if err != nil {
		return nil, fmt.Errorf("PRICE_SEEDS: %w", err)
	}

	return &Config{
		MarketOpen:           v.GetString("MARKET_OPEN"),
		MarketClose:          v.GetString("MARKET_CLOSE"),
		TickInterval:         seconds(v.GetFloat64("TICK_INTERVAL")),
		PriceVolatility:      v.GetFloat64("PRICE_VOLATILITY"),
		PriceSeeds:           seeds,
		StrategiesFile:       v.GetString("STRATEGIES_FILE"),
		LogLevel:             strings.ToUpper(v.GetString("LOG_LEVEL")),
		LogFormat:            strings.ToLower(v.GetString("LOG_FORMAT")),
		HealthInterval:       seconds(v.GetFloat64("HEALTH_INTERVAL")),
		SubscriptionCapacity: v.GetInt("SUBSCRIPTION_CAPACITY"),
		ShutdownGrace:        seconds(v.GetFloat64("SHUTDOWN_GRACE")),
		StatusAddr:           v.GetString("STATUS_ADDR"),
	}, nil
}

// Validate checks every field and reports the first problem found.
func (c *Config) Validate() error {
	openMins, err := clock.ParseHHMM(c.MarketOpen)
	if err != nil {
		return fmt.Errorf("MARKET_OPEN: %w", err)
	}
	closeMins, err := clock.ParseHHMM(c.MarketClose)
	if err != nil {
		return fmt.Errorf("MARKET_CLOSE: %w", err)
	}
	if openMins == closeMins {
		return fmt.Errorf("MARKET_OPEN and MARKET_CLOSE must differ")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive")
	}
	if c.PriceVolatility < 0 || c.PriceVolatility >= 1 {
		return fmt.Errorf("PRICE_VOLATILITY must be in [0, 1), got %g", c.PriceVolatility)
	}
	if c.HealthInterval <= 0 {
		return fmt.Errorf("HEALTH_INTERVAL must be positive")
	}
	if c.SubscriptionCapacity <= 0 {
		return fmt.Errorf("SUBSCRIPTION_CAPACITY must be positive")
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("SHUTDOWN_GRACE must be positive")
	}
	switch c.LogLevel {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of DEBUG, INFO, WARN, ERROR, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if _, err := os.Stat(c.StrategiesFile); err != nil {
		return fmt.Errorf("strategies file not found: %s", c.StrategiesFile)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseSeeds parses "INSTRUMENT=PRICE,INSTRUMENT=PRICE,…".
func parseSeeds(s string) (map[string]decimal.Decimal, error) {
	seeds := make(map[string]decimal.Decimal)
	if strings.TrimSpace(s) == "" {
		return seeds, nil
	}
	for _, pair := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed seed entry %q, want INSTRUMENT=PRICE", pair)
		}
		price, err := decimal.NewFromString(value)
		if err != nil || !price.IsPositive() {
			return nil, fmt.Errorf("invalid seed price %q for %s", value, name)
		}
		seeds[name] = price
	}
	return seeds, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
