package broker

import (
	"context"
	"testing"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/domain"
	"github.com/frankgibbs/algolearn-orb/internal/pkg/circuit"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"

	"github.com/stretchr/testify/assert"
)

// stubBroker fails a fixed number of times before succeeding.
type stubBroker struct {
	failures  int
	calls     int
	lastPrice float64
	blockFor  time.Duration
}

func (s *stubBroker) PlaceBracket(ctx context.Context, req BracketRequest) (BracketResult, error) {
	return BracketResult{}, nil
}
func (s *stubBroker) ModifyStop(ctx context.Context, stopOrderID int64, newPrice float64) error {
	return nil
}
func (s *stubBroker) CancelOrder(ctx context.Context, orderID int64) error { return nil }
func (s *stubBroker) OrderStatus(ctx context.Context, orderID int64) (OrderStatus, error) {
	return OrderStatus{}, nil
}
func (s *stubBroker) PlaceMarketClose(ctx context.Context, symbol string, direction model.Direction, shares int) (int64, error) {
	return 0, nil
}
func (s *stubBroker) GetCompletedBar(ctx context.Context, symbol string, durationMinutes int) (Bar, error) {
	return Bar{}, nil
}
func (s *stubBroker) AccountValue(ctx context.Context) (float64, error) { return 0, nil }

func (s *stubBroker) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	s.calls++
	if s.blockFor > 0 {
		select {
		case <-time.After(s.blockFor):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if s.calls <= s.failures {
		return 0, assert.AnError
	}
	return s.lastPrice, nil
}

func TestGuardedWrapsErrors(t *testing.T) {
	stub := &stubBroker{failures: 1}
	g := NewGuarded(stub, nil, time.Second)

	_, err := g.GetLastPrice(context.Background(), "AAPL")
	var gwErr *domain.GatewayError
	assert.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "GetLastPrice", gwErr.Op)
	assert.Equal(t, "AAPL", gwErr.Symbol)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGuardedBreakerOpensAfterThreshold(t *testing.T) {
	stub := &stubBroker{failures: 100}
	breaker := circuit.NewBreaker("test", 2, time.Hour)
	g := NewGuarded(stub, breaker, time.Second)

	_, _ = g.GetLastPrice(context.Background(), "AAPL")
	_, _ = g.GetLastPrice(context.Background(), "AAPL")
	assert.Equal(t, 2, stub.calls)

	// Third call is rejected without touching the broker.
	_, err := g.GetLastPrice(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, stub.calls)
}

func TestGuardedTimeoutIsAHardError(t *testing.T) {
	stub := &stubBroker{lastPrice: 100, blockFor: time.Second}
	g := NewGuarded(stub, nil, 20*time.Millisecond)

	_, err := g.GetLastPrice(context.Background(), "AAPL")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
