package exit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/gateway/broker"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/notifier"
	"github.com/frankgibbs/algolearn-orb/internal/logger"
	"github.com/frankgibbs/algolearn-orb/internal/report"
	"github.com/frankgibbs/algolearn-orb/internal/session"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

// EODLiquidation clears the book before the session closes: every OPEN
// position is flattened at market and every still-PENDING bracket is
// cancelled. Nothing is held overnight. It finishes by emitting the
// session report, flat or not.
type EODLiquidation struct {
	clock  *session.Clock
	store  store.Store
	broker broker.Broker
	events *notifier.Events
}

func NewEODLiquidation(clock *session.Clock, st store.Store, brk broker.Broker, events *notifier.Events) *EODLiquidation {
	return &EODLiquidation{clock: clock, store: st, broker: brk, events: events}
}

func (e *EODLiquidation) Run(ctx context.Context, now time.Time) error {
	if !e.clock.IsTradingDay(now) {
		return nil
	}
	sessionDate := e.clock.SessionDate(now)

	var failures []error
	open, err := e.store.Positions().ListByStatus(ctx, model.StatusOpen)
	if err != nil {
		failures = append(failures, err)
	}
	for i := range open {
		// One status change per position per tick. A fill promoted
		// earlier on this tick still has its stop resting at the broker.
		if t := open[i].EntryTime; t == nil || !t.Before(now) {
			logger.Warnf("EODLiquidation: %s opened on this tick, not flattened with it", open[i].Symbol)
			continue
		}
		if err := e.liquidateOpen(ctx, &open[i], now); err != nil {
			logger.Errorf("EODLiquidation: %s: %v", open[i].Symbol, err)
			failures = append(failures, fmt.Errorf("%s: %w", open[i].Symbol, err))
		}
	}

	pending, err := e.store.Positions().ListByStatus(ctx, model.StatusPending)
	if err != nil {
		failures = append(failures, err)
	}
	for i := range pending {
		if err := e.cancelPending(ctx, &pending[i], now); err != nil {
			logger.Errorf("EODLiquidation: %s: %v", pending[i].Symbol, err)
			failures = append(failures, fmt.Errorf("%s: %w", pending[i].Symbol, err))
		}
	}

	// The report goes out even after partial failures; whatever closed
	// today is worth summarizing.
	if err := e.emitReport(ctx, sessionDate); err != nil {
		failures = append(failures, err)
	}
	return errors.Join(failures...)
}

func (e *EODLiquidation) liquidateOpen(ctx context.Context, p *model.Position, now time.Time) error {
	if err := e.broker.CancelOrder(ctx, p.StopOrderID); err != nil {
		return fmt.Errorf("cancel stop order %d: %w", p.StopOrderID, err)
	}
	if _, err := e.broker.PlaceMarketClose(ctx, p.Symbol, p.Direction, p.Shares); err != nil {
		return fmt.Errorf("market close: %w", err)
	}
	price, err := e.broker.GetLastPrice(ctx, p.Symbol)
	if err != nil {
		// The flatten went through; close the book at the last known mark.
		logger.Warnf("EODLiquidation: %s last price unavailable, using mark %.2f: %v",
			p.Symbol, p.CurrentPrice, err)
		price = p.CurrentPrice
	}

	realized := (price - p.EntryPrice) * float64(p.Shares) * p.Direction.Sign()
	err = e.store.Positions().UpdateStatus(ctx, p.ID, model.StatusClosed, func(pos *model.Position) {
		pos.ExitTime = &now
		pos.ExitPrice = price
		pos.ExitReason = model.ExitEndOfDay
		pos.RealizedPnL = realized
		pos.CurrentPrice = price
		pos.UnrealizedPnL = 0
	})
	if err != nil {
		return err
	}
	logger.Infof("EODLiquidation: %s flattened at %.2f for %.2f", p.Symbol, price, realized)
	e.events.Emit(notifier.Event{
		Kind:   "POSITION_CLOSED",
		Symbol: p.Symbol,
		Details: map[string]string{
			"reason":   string(model.ExitEndOfDay),
			"exit":     fmt.Sprintf("%.2f", price),
			"realized": fmt.Sprintf("%.2f", realized),
		},
	})
	return nil
}

// cancelPending withdraws a bracket whose entry never filled. Realized
// P&L is zero: nothing was ever held.
func (e *EODLiquidation) cancelPending(ctx context.Context, p *model.Position, now time.Time) error {
	if err := e.broker.CancelOrder(ctx, p.ID); err != nil {
		return fmt.Errorf("cancel entry order %d: %w", p.ID, err)
	}
	if err := e.broker.CancelOrder(ctx, p.StopOrderID); err != nil {
		return fmt.Errorf("cancel stop order %d: %w", p.StopOrderID, err)
	}
	err := e.store.Positions().UpdateStatus(ctx, p.ID, model.StatusClosed, func(pos *model.Position) {
		pos.ExitTime = &now
		pos.ExitReason = model.ExitEndOfDay
	})
	if err != nil {
		return err
	}
	logger.Infof("EODLiquidation: %s unfilled bracket cancelled", p.Symbol)
	e.events.Emit(notifier.Event{
		Kind:   "POSITION_CLOSED",
		Symbol: p.Symbol,
		Details: map[string]string{
			"reason":   string(model.ExitEndOfDay),
			"note":     "entry never filled",
			"realized": "0.00",
		},
	})
	return nil
}

func (e *EODLiquidation) emitReport(ctx context.Context, sessionDate string) error {
	closed, err := e.store.Positions().ListClosedByDate(ctx, sessionDate)
	if err != nil {
		return fmt.Errorf("load closed positions for report: %w", err)
	}
	summary := report.Build(sessionDate, closed)
	e.events.Emit(notifier.Event{Kind: "SESSION_REPORT", Details: summary.Details()})
	return nil
}
