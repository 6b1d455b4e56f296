package exit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/config"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/broker"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/notifier"
	"github.com/frankgibbs/algolearn-orb/internal/logger"
	"github.com/frankgibbs/algolearn-orb/internal/session"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

// TrailingStop converts the take-profit level into a trailing exit. Once
// price reaches the monitored target the broker-resident stop starts
// following price at a fixed fraction of the opening-range size, and from
// then on it only ever tightens.
type TrailingStop struct {
	cfg    *config.Config
	clock  *session.Clock
	store  store.Store
	broker broker.Broker
	events *notifier.Events
}

func NewTrailingStop(cfg *config.Config, clock *session.Clock, st store.Store, brk broker.Broker, events *notifier.Events) *TrailingStop {
	return &TrailingStop{cfg: cfg, clock: clock, store: st, broker: brk, events: events}
}

func (t *TrailingStop) Run(ctx context.Context, now time.Time) error {
	if !t.clock.InSession(now) {
		return nil
	}
	open, err := t.store.Positions().ListByStatus(ctx, model.StatusOpen)
	if err != nil {
		return err
	}
	var failures []error
	for i := range open {
		// A position opened on this tick is not evaluated until the next.
		if e := open[i].EntryTime; e == nil || !e.Before(now) {
			continue
		}
		if err := t.evaluate(ctx, &open[i]); err != nil {
			logger.Errorf("TrailingStop: %s: %v", open[i].Symbol, err)
			failures = append(failures, fmt.Errorf("%s: %w", open[i].Symbol, err))
		}
	}
	return errors.Join(failures...)
}

func (t *TrailingStop) evaluate(ctx context.Context, p *model.Position) error {
	price, err := t.broker.GetLastPrice(ctx, p.Symbol)
	if err != nil {
		return err
	}

	trailDistance := t.cfg.Strategy.TrailingRatio * p.RangeSize
	candidate := price - p.Direction.Sign()*trailDistance

	if !p.StopMoved {
		reached := (p.IsLong() && price >= p.TakeProfit) ||
			(!p.IsLong() && price <= p.TakeProfit)
		if !reached {
			return nil
		}
		// Broker first: the stored trailing price must never get ahead of
		// the order actually resting at the broker.
		if err := t.broker.ModifyStop(ctx, p.StopOrderID, candidate); err != nil {
			return err
		}
		err := t.store.Positions().UpdateFields(ctx, p.ID, func(pos *model.Position) {
			pos.StopMoved = true
			pos.TrailingStop = candidate
		})
		if err != nil {
			return err
		}
		logger.Infof("TrailingStop: %s target %.2f touched at %.2f, stop trailed to %.2f",
			p.Symbol, p.TakeProfit, price, candidate)
		t.events.Emit(notifier.Event{
			Kind:   "TRAILING_ACTIVATED",
			Symbol: p.Symbol,
			Details: map[string]string{
				"price": fmt.Sprintf("%.2f", price),
				"stop":  fmt.Sprintf("%.2f", candidate),
			},
		})
		return nil
	}

	// Already trailing: advance only, never loosen.
	improved := (p.IsLong() && candidate > p.TrailingStop) ||
		(!p.IsLong() && candidate < p.TrailingStop)
	if !improved {
		return nil
	}
	if err := t.broker.ModifyStop(ctx, p.StopOrderID, candidate); err != nil {
		return err
	}
	err = t.store.Positions().UpdateFields(ctx, p.ID, func(pos *model.Position) {
		pos.TrailingStop = candidate
	})
	if err != nil {
		return err
	}
	logger.Debugf("TrailingStop: %s stop advanced to %.2f", p.Symbol, candidate)
	return nil
}
