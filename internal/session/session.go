package session

import (
	"fmt"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/config"
)

// Clock answers session-calendar questions for one exchange timezone. All
// comparisons happen in wall-clock minutes of that timezone, so daylight
// saving shifts are absorbed by the location.
type Clock struct {
	loc       *time.Location
	open      config.ClockTime
	close     config.ClockTime
	eodExit   config.ClockTime
	timeframe int
}

// NewClock parses the configured session times. It fails on malformed
// clock strings or an unknown timezone.
func NewClock(cfg config.SessionConfig) (*Clock, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("session: load timezone %q: %w", cfg.Timezone, err)
	}
	open, err := cfg.Open()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	closeAt, err := cfg.Close()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	eod, err := cfg.EODExit()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &Clock{
		loc:       loc,
		open:      open,
		close:     closeAt,
		eodExit:   eod,
		timeframe: cfg.TimeframeMinutes,
	}, nil
}

func (c *Clock) Location() *time.Location { return c.loc }

// SessionDate is the calendar date of t in the session timezone.
func (c *Clock) SessionDate(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

// IsTradingDay reports whether t falls on a weekday.
func (c *Clock) IsTradingDay(t time.Time) bool {
	wd := t.In(c.loc).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (c *Clock) minuteOfDay(t time.Time) int {
	local := t.In(c.loc)
	return local.Hour()*60 + local.Minute()
}

// InSession reports whether t is within [open, close) on a trading day.
func (c *Clock) InSession(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	m := c.minuteOfDay(t)
	return m >= c.open.Minutes() && m < c.close.Minutes()
}

// RangeReady reports whether the first timeframe bar of the session has
// completed, i.e. t is at or past open plus one timeframe.
func (c *Clock) RangeReady(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	return c.minuteOfDay(t) >= c.open.Minutes()+c.timeframe
}
