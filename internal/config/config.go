package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the YAML config at path and validates it. Any missing required
// value is a hard failure here, never a silent default later.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills ambient (non-trading) settings only. Strategy and
// session values never default.
func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Scheduler.TickSeconds <= 0 {
		c.Scheduler.TickSeconds = 5
	}
	if c.Scheduler.LifecycleSeconds <= 0 {
		c.Scheduler.LifecycleSeconds = 30
	}
	if c.Scheduler.TrailingSeconds <= 0 {
		c.Scheduler.TrailingSeconds = 60
	}
	if c.Scheduler.StagnationSeconds <= 0 {
		c.Scheduler.StagnationSeconds = 60
	}
	if c.Broker.BreakerThreshold <= 0 {
		c.Broker.BreakerThreshold = 5
	}
	if c.Broker.BreakerCooldownSeconds <= 0 {
		c.Broker.BreakerCooldownSeconds = 60
	}
}
