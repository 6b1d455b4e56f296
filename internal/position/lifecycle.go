package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/gateway/broker"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/notifier"
	"github.com/frankgibbs/algolearn-orb/internal/logger"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

// LifecycleManager reflects broker order state into the position store. It
// only observes: it never places, cancels or modifies an order, and it
// performs no exit logic of its own. A position advances at most one
// status per pass: the OPEN set is snapshotted before the PENDING scan
// runs, so a fill promoted this pass is not examined again until the next.
type LifecycleManager struct {
	store  store.Store
	broker broker.Broker
	events *notifier.Events
}

func NewLifecycleManager(st store.Store, brk broker.Broker, events *notifier.Events) *LifecycleManager {
	return &LifecycleManager{store: st, broker: brk, events: events}
}

func (m *LifecycleManager) Run(ctx context.Context, now time.Time) error {
	open, openErr := m.store.Positions().ListByStatus(ctx, model.StatusOpen)

	var failures []error
	if err := m.scanPending(ctx, now); err != nil {
		failures = append(failures, err)
	}
	if openErr != nil {
		failures = append(failures, openErr)
	} else if err := m.scanOpen(ctx, open, now); err != nil {
		failures = append(failures, err)
	}
	return errors.Join(failures...)
}

// scanPending promotes PENDING positions whose entry order has filled.
func (m *LifecycleManager) scanPending(ctx context.Context, now time.Time) error {
	pending, err := m.store.Positions().ListByStatus(ctx, model.StatusPending)
	if err != nil {
		return err
	}
	var failures []error
	for i := range pending {
		p := &pending[i]
		status, err := m.broker.OrderStatus(ctx, p.ID)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s entry order %d: %w", p.Symbol, p.ID, err))
			continue
		}
		switch status.State {
		case broker.OrderFilled:
			fillTime := now
			err := m.store.Positions().UpdateStatus(ctx, p.ID, model.StatusOpen, func(pos *model.Position) {
				pos.EntryPrice = status.FillPrice
				pos.EntryTime = &fillTime
				pos.CurrentPrice = status.FillPrice
			})
			if err != nil {
				failures = append(failures, fmt.Errorf("%s open transition: %w", p.Symbol, err))
				continue
			}
			logger.Infof("Lifecycle: %s entry order %d filled at %.2f", p.Symbol, p.ID, status.FillPrice)
			m.events.Emit(notifier.Event{
				Kind:   "POSITION_OPEN",
				Symbol: p.Symbol,
				Details: map[string]string{
					"direction": string(p.Direction),
					"shares":    fmt.Sprintf("%d", p.Shares),
					"fill":      fmt.Sprintf("%.2f", status.FillPrice),
				},
			})
		case broker.OrderCancelled:
			// The position stays PENDING until end-of-day liquidation
			// sweeps it up; flattening is not this manager's job.
			logger.Warnf("Lifecycle: %s entry order %d cancelled at the broker", p.Symbol, p.ID)
		}
	}
	return errors.Join(failures...)
}

// scanOpen closes OPEN positions whose stop has filled and refreshes the
// mark on the rest. It works off the list captured before the PENDING
// scan, never a re-read.
func (m *LifecycleManager) scanOpen(ctx context.Context, open []model.Position, now time.Time) error {
	var failures []error
	for i := range open {
		p := &open[i]
		status, err := m.broker.OrderStatus(ctx, p.StopOrderID)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s stop order %d: %w", p.Symbol, p.StopOrderID, err))
			continue
		}
		if status.State == broker.OrderFilled {
			if err := m.closeStopped(ctx, p, status.FillPrice, now); err != nil {
				failures = append(failures, fmt.Errorf("%s close transition: %w", p.Symbol, err))
			}
			continue
		}
		if err := m.refreshMark(ctx, p); err != nil {
			failures = append(failures, fmt.Errorf("%s mark refresh: %w", p.Symbol, err))
		}
	}
	return errors.Join(failures...)
}

func (m *LifecycleManager) closeStopped(ctx context.Context, p *model.Position, fillPrice float64, now time.Time) error {
	exitTime := now
	realized := (fillPrice - p.EntryPrice) * float64(p.Shares) * p.Direction.Sign()
	err := m.store.Positions().UpdateStatus(ctx, p.ID, model.StatusClosed, func(pos *model.Position) {
		pos.ExitTime = &exitTime
		pos.ExitPrice = fillPrice
		pos.ExitReason = model.ExitStopHit
		pos.RealizedPnL = realized
		pos.CurrentPrice = fillPrice
		pos.UnrealizedPnL = 0
	})
	if err != nil {
		return err
	}
	logger.Infof("Lifecycle: %s stop filled at %.2f, realized %.2f", p.Symbol, fillPrice, realized)
	m.events.Emit(notifier.Event{
		Kind:   "POSITION_CLOSED",
		Symbol: p.Symbol,
		Details: map[string]string{
			"reason":   string(model.ExitStopHit),
			"exit":     fmt.Sprintf("%.2f", fillPrice),
			"realized": fmt.Sprintf("%.2f", realized),
		},
	})
	return nil
}

func (m *LifecycleManager) refreshMark(ctx context.Context, p *model.Position) error {
	price, err := m.broker.GetLastPrice(ctx, p.Symbol)
	if err != nil {
		return err
	}
	return m.store.Positions().UpdateFields(ctx, p.ID, func(pos *model.Position) {
		pos.CurrentPrice = price
		pos.UnrealizedPnL = (price - pos.EntryPrice) * float64(pos.Shares) * pos.Direction.Sign()
	})
}
