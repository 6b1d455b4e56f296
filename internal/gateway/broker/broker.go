package broker

import (
	"context"

	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

// OrderState reported by the brokerage for a single order.
type OrderState string

const (
	OrderPending   OrderState = "PENDING"
	OrderFilled    OrderState = "FILLED"
	OrderCancelled OrderState = "CANCELLED"
)

// Bar is one completed OHLCV price bar.
type Bar struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// BracketRequest asks for an entry order plus a linked protective stop.
type BracketRequest struct {
	Symbol     string
	Direction  model.Direction
	Shares     int
	EntryPrice float64
	StopPrice  float64
}

// BracketResult carries the broker-assigned order pair.
type BracketResult struct {
	EntryOrderID int64
	StopOrderID  int64
}

// OrderStatus is the broker's view of one order. FillPrice is meaningful only
// when State is FILLED.
type OrderStatus struct {
	State     OrderState
	FillPrice float64
}

// Broker is the execution gateway. Every call fails with a typed error,
// never a sentinel value, and must respect the context deadline.
type Broker interface {
	PlaceBracket(ctx context.Context, req BracketRequest) (BracketResult, error)
	ModifyStop(ctx context.Context, stopOrderID int64, newPrice float64) error
	CancelOrder(ctx context.Context, orderID int64) error
	OrderStatus(ctx context.Context, orderID int64) (OrderStatus, error)
	// PlaceMarketClose flattens shares of a position at market.
	PlaceMarketClose(ctx context.Context, symbol string, direction model.Direction, shares int) (int64, error)
	// GetCompletedBar returns the most recently completed bar of the given
	// duration, never the bar still in progress.
	GetCompletedBar(ctx context.Context, symbol string, durationMinutes int) (Bar, error)
	GetLastPrice(ctx context.Context, symbol string) (float64, error)
	AccountValue(ctx context.Context) (float64, error)
}
