package exit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/config"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/broker"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/notifier"
	"github.com/frankgibbs/algolearn-orb/internal/logger"
	"github.com/frankgibbs/algolearn-orb/internal/session"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

// StagnationExit flattens positions that have gone nowhere: open past the
// age threshold with price still within a configured fraction of the
// opening-range size from entry. A breakout that stalls has failed.
type StagnationExit struct {
	cfg    *config.Config
	clock  *session.Clock
	store  store.Store
	broker broker.Broker
	events *notifier.Events
}

func NewStagnationExit(cfg *config.Config, clock *session.Clock, st store.Store, brk broker.Broker, events *notifier.Events) *StagnationExit {
	return &StagnationExit{cfg: cfg, clock: clock, store: st, broker: brk, events: events}
}

func (s *StagnationExit) Run(ctx context.Context, now time.Time) error {
	if !s.clock.InSession(now) {
		return nil
	}
	open, err := s.store.Positions().ListByStatus(ctx, model.StatusOpen)
	if err != nil {
		return err
	}
	maxAge := time.Duration(s.cfg.Strategy.StagnationMinutes) * time.Minute
	var failures []error
	for i := range open {
		p := &open[i]
		if p.EntryTime == nil || now.Sub(*p.EntryTime) <= maxAge {
			continue
		}
		if err := s.evaluate(ctx, p, now); err != nil {
			logger.Errorf("StagnationExit: %s: %v", p.Symbol, err)
			failures = append(failures, fmt.Errorf("%s: %w", p.Symbol, err))
		}
	}
	return errors.Join(failures...)
}

func (s *StagnationExit) evaluate(ctx context.Context, p *model.Position, now time.Time) error {
	price, err := s.broker.GetLastPrice(ctx, p.Symbol)
	if err != nil {
		return err
	}
	if math.Abs(price-p.EntryPrice) >= s.cfg.Strategy.StagnationFraction*p.RangeSize {
		return nil
	}

	if err := s.broker.CancelOrder(ctx, p.StopOrderID); err != nil {
		return fmt.Errorf("cancel stop order %d: %w", p.StopOrderID, err)
	}
	if _, err := s.broker.PlaceMarketClose(ctx, p.Symbol, p.Direction, p.Shares); err != nil {
		return fmt.Errorf("market close: %w", err)
	}

	realized := (price - p.EntryPrice) * float64(p.Shares) * p.Direction.Sign()
	err = s.store.Positions().UpdateStatus(ctx, p.ID, model.StatusClosed, func(pos *model.Position) {
		pos.ExitTime = &now
		pos.ExitPrice = price
		pos.ExitReason = model.ExitTimeStagnant
		pos.RealizedPnL = realized
		pos.CurrentPrice = price
		pos.UnrealizedPnL = 0
	})
	if err != nil {
		return err
	}
	logger.Infof("StagnationExit: %s flat after %s, exited at %.2f for %.2f",
		p.Symbol, now.Sub(*p.EntryTime).Round(time.Minute), price, realized)
	s.events.Emit(notifier.Event{
		Kind:   "POSITION_CLOSED",
		Symbol: p.Symbol,
		Details: map[string]string{
			"reason":   string(model.ExitTimeStagnant),
			"exit":     fmt.Sprintf("%.2f", price),
			"realized": fmt.Sprintf("%.2f", realized),
		},
	})
	return nil
}
