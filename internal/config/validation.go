package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.Session.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Broker.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if strings.TrimSpace(d.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if strings.TrimSpace(s.Timezone) == "" {
		return fmt.Errorf("session.timezone is required")
	}
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("session.timezone is invalid: %w", err)
	}
	open, err := s.Open()
	if err != nil {
		return fmt.Errorf("session.open_time: %w", err)
	}
	closeAt, err := s.Close()
	if err != nil {
		return fmt.Errorf("session.close_time: %w", err)
	}
	eod, err := s.EODExit()
	if err != nil {
		return fmt.Errorf("session.eod_exit_time: %w", err)
	}
	if closeAt.Minutes() <= open.Minutes() {
		return fmt.Errorf("session.close_time must be after open_time")
	}
	if eod.Minutes() <= open.Minutes() || eod.Minutes() > closeAt.Minutes() {
		return fmt.Errorf("session.eod_exit_time must fall inside the session")
	}
	switch s.TimeframeMinutes {
	case 15, 30, 60:
	default:
		return fmt.Errorf("session.timeframe_minutes must be 15, 30 or 60 (got %d)", s.TimeframeMinutes)
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if len(s.Symbols) == 0 {
		return fmt.Errorf("strategy.symbols requires at least one symbol")
	}
	seen := make(map[string]bool, len(s.Symbols))
	for i, sym := range s.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			return fmt.Errorf("strategy.symbols contains an empty entry")
		}
		if seen[sym] {
			return fmt.Errorf("strategy.symbols contains duplicate %s", sym)
		}
		seen[sym] = true
		s.Symbols[i] = sym
	}
	if s.RiskPct <= 0 || s.RiskPct > 100 {
		return fmt.Errorf("strategy.risk_pct must be in (0,100]")
	}
	if s.MaxPositions <= 0 {
		return fmt.Errorf("strategy.max_positions must be positive")
	}
	if s.TakeProfitRatio <= 0 {
		return fmt.Errorf("strategy.take_profit_ratio must be positive")
	}
	if s.TrailingRatio <= 0 {
		return fmt.Errorf("strategy.trailing_ratio must be positive")
	}
	if s.StagnationMinutes <= 0 {
		return fmt.Errorf("strategy.stagnation_minutes must be positive")
	}
	if s.StagnationFraction <= 0 || s.StagnationFraction > 1 {
		return fmt.Errorf("strategy.stagnation_fraction must be in (0,1]")
	}
	if err := validateBand("strategy.default_range", s.DefaultRange); err != nil {
		return err
	}
	normalized := make(map[string]RangeBand, len(s.SymbolRanges))
	for sym, band := range s.SymbolRanges {
		key := strings.ToUpper(strings.TrimSpace(sym))
		if err := validateBand("strategy.symbol_ranges."+key, band); err != nil {
			return err
		}
		normalized[key] = band
	}
	s.SymbolRanges = normalized
	return nil
}

func validateBand(name string, band RangeBand) error {
	if band.MinPct <= 0 {
		return fmt.Errorf("%s.min_pct must be positive", name)
	}
	if band.MaxPct <= band.MinPct {
		return fmt.Errorf("%s.max_pct must exceed min_pct", name)
	}
	return nil
}

func (b *BrokerConfig) validate() error {
	if strings.TrimSpace(b.APIURL) == "" {
		return fmt.Errorf("broker.api_url is required")
	}
	if b.TimeoutSeconds <= 0 {
		return fmt.Errorf("broker.timeout_seconds must be positive")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" {
		return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
	}
	if strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled")
	}
	return nil
}
