package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the immutable configuration injected at startup.
type Config struct {
	App       AppConfig       `toml:"app"`
	Database  DatabaseConfig  `toml:"database"`
	Session   SessionConfig   `toml:"session"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Broker    BrokerConfig    `toml:"broker"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// SessionConfig pins the trading session to one exchange clock. Times are
// "HH:MM" in the session timezone.
type SessionConfig struct {
	Timezone         string `toml:"timezone"`
	OpenTime         string `toml:"open_time"`
	CloseTime        string `toml:"close_time"`
	EODExitTime      string `toml:"eod_exit_time"`
	TimeframeMinutes int    `toml:"timeframe_minutes"` // 15, 30 or 60
}

// RangeBand is the acceptable opening-range size band in percent of the
// range midpoint.
type RangeBand struct {
	MinPct float64 `toml:"min_pct"`
	MaxPct float64 `toml:"max_pct"`
}

type StrategyConfig struct {
	Symbols            []string             `toml:"symbols"`
	RiskPct            float64              `toml:"risk_pct"`
	MaxPositions       int                  `toml:"max_positions"`
	TakeProfitRatio    float64              `toml:"take_profit_ratio"`
	TrailingRatio      float64              `toml:"trailing_ratio"`
	StagnationMinutes  int                  `toml:"stagnation_minutes"`
	StagnationFraction float64              `toml:"stagnation_fraction"`
	DefaultRange       RangeBand            `toml:"default_range"`
	SymbolRanges       map[string]RangeBand `toml:"symbol_ranges"`
}

type BrokerConfig struct {
	APIURL                 string `toml:"api_url"`
	APIToken               string `toml:"api_token"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

type SchedulerConfig struct {
	TickSeconds       int `toml:"tick_seconds"`
	LifecycleSeconds  int `toml:"lifecycle_seconds"`
	TrailingSeconds   int `toml:"trailing_seconds"`
	StagnationSeconds int `toml:"stagnation_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// RangeBand returns the symbol's configured band, falling back to the
// global default when the symbol has no override.
func (s StrategyConfig) RangeBand(symbol string) RangeBand {
	if band, ok := s.SymbolRanges[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return band
	}
	return s.DefaultRange
}

// Location resolves the session timezone.
func (s SessionConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// ClockTime is a parsed "HH:MM" wall-clock time.
type ClockTime struct {
	Hour   int
	Minute int
}

func parseClock(value string) (ClockTime, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("clock time %q must be HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("clock time %q has invalid hour", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q has invalid minute", value)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// Minutes since midnight, for session window comparisons.
func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

func (s SessionConfig) Open() (ClockTime, error)  { return parseClock(s.OpenTime) }
func (s SessionConfig) Close() (ClockTime, error) { return parseClock(s.CloseTime) }
func (s SessionConfig) EODExit() (ClockTime, error) {
	return parseClock(s.EODExitTime)
}

// RangeReadyTime is when the opening range can be computed: session open
// plus one full timeframe.
func (s SessionConfig) RangeReadyTime() (ClockTime, error) {
	open, err := s.Open()
	if err != nil {
		return ClockTime{}, err
	}
	total := open.Minutes() + s.TimeframeMinutes
	return ClockTime{Hour: (total / 60) % 24, Minute: total % 60}, nil
}
