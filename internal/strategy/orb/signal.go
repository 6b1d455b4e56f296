package orb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/bus"
	"github.com/frankgibbs/algolearn-orb/internal/config"
	"github.com/frankgibbs/algolearn-orb/internal/domain"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/broker"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/notifier"
	"github.com/frankgibbs/algolearn-orb/internal/logger"
	"github.com/frankgibbs/algolearn-orb/internal/session"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

const strategyName = "orb"

// SignalDetector scans completed timeframe bars for closes beyond the
// stored opening range and turns each breakout into an open-position
// intent on the bus. It never touches the broker's order API itself.
type SignalDetector struct {
	cfg    *config.Config
	clock  *session.Clock
	store  store.Store
	broker broker.Broker
	bus    *bus.Bus
	events *notifier.Events
}

func NewSignalDetector(cfg *config.Config, clock *session.Clock, st store.Store, brk broker.Broker, b *bus.Bus, events *notifier.Events) *SignalDetector {
	return &SignalDetector{cfg: cfg, clock: clock, store: st, broker: brk, bus: b, events: events}
}

// Run scans every configured symbol independently. Symbols without a
// stored range or with a position already taken today are skipped.
func (d *SignalDetector) Run(ctx context.Context, now time.Time) error {
	if !d.clock.InSession(now) || !d.clock.RangeReady(now) {
		return nil
	}
	sessionDate := d.clock.SessionDate(now)

	var failures []error
	for _, symbol := range d.cfg.Strategy.Symbols {
		if err := d.scanSymbol(ctx, symbol, sessionDate); err != nil {
			if errors.Is(err, domain.ErrAtCapacity) {
				// One notification, then stop scanning: capacity will not
				// free up inside this pass. Failures from earlier symbols
				// still reach the dispatcher.
				d.events.Emit(notifier.Event{
					Kind:    "SIGNAL_DROPPED",
					Symbol:  symbol,
					Details: map[string]string{"reason": "at position capacity"},
				})
				return errors.Join(failures...)
			}
			logger.Errorf("SignalDetector: %s: %v", symbol, err)
			failures = append(failures, fmt.Errorf("%s: %w", symbol, err))
		}
	}
	return errors.Join(failures...)
}

func (d *SignalDetector) scanSymbol(ctx context.Context, symbol, sessionDate string) error {
	taken, err := d.store.Positions().HasPositionForSymbol(ctx, symbol, sessionDate)
	if err != nil {
		return err
	}
	if taken {
		return nil
	}

	r, err := d.store.Ranges().Find(ctx, symbol, sessionDate)
	if errors.Is(err, domain.ErrRangeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	bar, err := d.broker.GetCompletedBar(ctx, symbol, d.cfg.Session.TimeframeMinutes)
	if err != nil {
		return err
	}

	// A breakout is a close strictly outside the band; touching the
	// boundary does not count.
	var direction model.Direction
	switch {
	case bar.Close > r.RangeHigh:
		direction = model.DirectionLong
	case bar.Close < r.RangeLow:
		direction = model.DirectionShort
	default:
		return nil
	}

	active, err := d.store.Positions().CountActive(ctx)
	if err != nil {
		return err
	}
	if active >= d.cfg.Strategy.MaxPositions {
		logger.Warnf("SignalDetector: %s %s breakout dropped, %d active positions at cap %d",
			symbol, direction, active, d.cfg.Strategy.MaxPositions)
		return domain.ErrAtCapacity
	}

	entry := bar.Close
	stop := r.RangeMid
	takeProfit := entry + direction.Sign()*d.cfg.Strategy.TakeProfitRatio*r.RangeSize

	account, err := d.broker.AccountValue(ctx)
	if err != nil {
		return err
	}
	shares := ShareSize(account, d.cfg.Strategy.RiskPct, entry, stop)
	if shares < 1 {
		logger.Warnf("SignalDetector: %s %s breakout sized to zero shares (account %.2f, risk %.2f%%)",
			symbol, direction, account, d.cfg.Strategy.RiskPct)
		return nil
	}

	intent := bus.OpenPositionIntent{
		Strategy:       strategyName,
		Symbol:         symbol,
		Direction:      direction,
		Shares:         shares,
		EntryPrice:     entry,
		StopLoss:       stop,
		TakeProfit:     takeProfit,
		RangeSize:      r.RangeSize,
		OpeningRangeID: r.ID,
		SessionDate:    sessionDate,
		Reason: fmt.Sprintf("close %.2f outside range [%.2f, %.2f]",
			bar.Close, r.RangeLow, r.RangeHigh),
	}
	evt, err := bus.NewEnvelope(bus.EvtOpenPositionIntent, intent)
	if err != nil {
		return err
	}
	logger.Infof("SignalDetector: %s %s breakout at %.2f, stop %.2f, target %.2f, %d shares",
		symbol, direction, entry, stop, takeProfit, shares)
	return d.bus.PublishSync(ctx, evt)
}
