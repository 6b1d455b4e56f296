package orb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/config"
	"github.com/frankgibbs/algolearn-orb/internal/domain"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/broker"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/notifier"
	"github.com/frankgibbs/algolearn-orb/internal/logger"
	"github.com/frankgibbs/algolearn-orb/internal/session"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

// RangeCalculator computes the opening range for every configured symbol
// once per session, right after the first timeframe bar completes. Only
// ranges whose size falls inside the configured band are persisted; a
// symbol without a stored range simply never trades that day.
type RangeCalculator struct {
	cfg    *config.Config
	clock  *session.Clock
	store  store.Store
	broker broker.Broker
	events *notifier.Events
}

func NewRangeCalculator(cfg *config.Config, clock *session.Clock, st store.Store, brk broker.Broker, events *notifier.Events) *RangeCalculator {
	return &RangeCalculator{cfg: cfg, clock: clock, store: st, broker: brk, events: events}
}

// Run processes every symbol independently; one symbol's failure never
// blocks the rest. The combined error is reported to the dispatcher.
func (c *RangeCalculator) Run(ctx context.Context, now time.Time) error {
	if !c.clock.IsTradingDay(now) {
		return nil
	}
	sessionDate := c.clock.SessionDate(now)

	var (
		failures  []error
		computed  int
		rejected  []string
		duplicate int
	)
	for _, symbol := range c.cfg.Strategy.Symbols {
		ok, err := c.computeSymbol(ctx, symbol, sessionDate)
		switch {
		case errors.Is(err, errRangeExists):
			duplicate++
		case err != nil:
			logger.Errorf("RangeCalculator: %s: %v", symbol, err)
			failures = append(failures, fmt.Errorf("%s: %w", symbol, err))
		case ok:
			computed++
		default:
			rejected = append(rejected, symbol)
		}
	}

	if duplicate == len(c.cfg.Strategy.Symbols) {
		// Re-run on a day whose ranges are already stored; nothing to say.
		return nil
	}
	details := map[string]string{
		"date":     sessionDate,
		"computed": fmt.Sprintf("%d", computed),
	}
	if len(rejected) > 0 {
		details["rejected"] = fmt.Sprintf("%v", rejected)
	}
	if len(failures) > 0 {
		details["failed"] = fmt.Sprintf("%d", len(failures))
	}
	c.events.Emit(notifier.Event{Kind: "OPENING_RANGES", Details: details})
	return errors.Join(failures...)
}

var errRangeExists = errors.New("range already stored")

// computeSymbol returns true when a valid range was stored, false when the
// bar completed but its size fell outside the band.
func (c *RangeCalculator) computeSymbol(ctx context.Context, symbol, sessionDate string) (bool, error) {
	if _, err := c.store.Ranges().Find(ctx, symbol, sessionDate); err == nil {
		return false, errRangeExists
	} else if !errors.Is(err, domain.ErrRangeNotFound) {
		return false, err
	}

	timeframe := c.cfg.Session.TimeframeMinutes
	bar, err := c.broker.GetCompletedBar(ctx, symbol, timeframe)
	if err != nil {
		return false, err
	}
	if bar.High < bar.Low || bar.High <= 0 {
		return false, &domain.ValidationError{Field: "bar", Reason: fmt.Sprintf("malformed bar high=%.4f low=%.4f", bar.High, bar.Low)}
	}

	size := bar.High - bar.Low
	mid := (bar.High + bar.Low) / 2
	sizePct := size / mid * 100

	band := c.cfg.Strategy.RangeBand(symbol)
	if sizePct < band.MinPct || sizePct > band.MaxPct {
		logger.Infof("RangeCalculator: %s range %.2f%% outside band [%.2f%%, %.2f%%], not tradeable today",
			symbol, sizePct, band.MinPct, band.MaxPct)
		return false, nil
	}

	sourceBar, err := json.Marshal(bar)
	if err != nil {
		return false, err
	}
	r := &model.OpeningRange{
		Symbol:           symbol,
		SessionDate:      sessionDate,
		TimeframeMinutes: timeframe,
		RangeHigh:        bar.High,
		RangeLow:         bar.Low,
		RangeMid:         mid,
		RangeSize:        size,
		RangeSizePct:     sizePct,
		SourceBar:        sourceBar,
		CreatedAt:        time.Now(),
	}
	if err := c.store.Ranges().Save(ctx, r); err != nil {
		return false, err
	}
	logger.Infof("RangeCalculator: %s range [%.2f, %.2f] size %.2f (%.2f%%)",
		symbol, bar.Low, bar.High, size, sizePct)
	return true, nil
}
