package broker

import (
	"context"
	"errors"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/domain"
	"github.com/frankgibbs/algolearn-orb/internal/pkg/circuit"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

// ErrCircuitOpen is returned without touching the broker while the breaker
// is open after repeated failures.
var ErrCircuitOpen = errors.New("broker circuit open")

// Guarded decorates a Broker with a per-call deadline and a circuit breaker
// so one stalled gateway call fails fast instead of wedging the dispatch
// loop. Every failure surfaces as a domain.GatewayError.
type Guarded struct {
	inner   Broker
	breaker *circuit.Breaker
	timeout time.Duration
}

func NewGuarded(inner Broker, breaker *circuit.Breaker, timeout time.Duration) *Guarded {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Guarded{inner: inner, breaker: breaker, timeout: timeout}
}

func (g *Guarded) call(ctx context.Context, op, symbol string, fn func(context.Context) error) error {
	if g.breaker != nil && !g.breaker.Allow() {
		return &domain.GatewayError{Op: op, Symbol: symbol, Err: ErrCircuitOpen}
	}
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	err := fn(cctx)
	if g.breaker != nil {
		if err != nil {
			g.breaker.RecordFailure()
		} else {
			g.breaker.RecordSuccess()
		}
	}
	if err != nil {
		return &domain.GatewayError{Op: op, Symbol: symbol, Err: err}
	}
	return nil
}

func (g *Guarded) PlaceBracket(ctx context.Context, req BracketRequest) (BracketResult, error) {
	var res BracketResult
	err := g.call(ctx, "PlaceBracket", req.Symbol, func(c context.Context) error {
		var inner error
		res, inner = g.inner.PlaceBracket(c, req)
		return inner
	})
	return res, err
}

func (g *Guarded) ModifyStop(ctx context.Context, stopOrderID int64, newPrice float64) error {
	return g.call(ctx, "ModifyStop", "", func(c context.Context) error {
		return g.inner.ModifyStop(c, stopOrderID, newPrice)
	})
}

func (g *Guarded) CancelOrder(ctx context.Context, orderID int64) error {
	return g.call(ctx, "CancelOrder", "", func(c context.Context) error {
		return g.inner.CancelOrder(c, orderID)
	})
}

func (g *Guarded) OrderStatus(ctx context.Context, orderID int64) (OrderStatus, error) {
	var st OrderStatus
	err := g.call(ctx, "OrderStatus", "", func(c context.Context) error {
		var inner error
		st, inner = g.inner.OrderStatus(c, orderID)
		return inner
	})
	return st, err
}

func (g *Guarded) PlaceMarketClose(ctx context.Context, symbol string, direction model.Direction, shares int) (int64, error) {
	var id int64
	err := g.call(ctx, "PlaceMarketClose", symbol, func(c context.Context) error {
		var inner error
		id, inner = g.inner.PlaceMarketClose(c, symbol, direction, shares)
		return inner
	})
	return id, err
}

func (g *Guarded) GetCompletedBar(ctx context.Context, symbol string, durationMinutes int) (Bar, error) {
	var bar Bar
	err := g.call(ctx, "GetCompletedBar", symbol, func(c context.Context) error {
		var inner error
		bar, inner = g.inner.GetCompletedBar(c, symbol, durationMinutes)
		return inner
	})
	return bar, err
}

func (g *Guarded) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	var price float64
	err := g.call(ctx, "GetLastPrice", symbol, func(c context.Context) error {
		var inner error
		price, inner = g.inner.GetLastPrice(c, symbol)
		return inner
	})
	return price, err
}

func (g *Guarded) AccountValue(ctx context.Context) (float64, error) {
	var v float64
	err := g.call(ctx, "AccountValue", "", func(c context.Context) error {
		var inner error
		v, inner = g.inner.AccountValue(c)
		return inner
	})
	return v, err
}
