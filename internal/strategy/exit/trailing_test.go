package exit

import (
	"context"
	"testing"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/config"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/notifier"
	"github.com/frankgibbs/algolearn-orb/internal/session"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testConfig() *config.Config {
	return &config.Config{
		Session: config.SessionConfig{
			Timezone:         "UTC",
			OpenTime:         "09:30",
			CloseTime:        "16:00",
			EODExitTime:      "15:45",
			TimeframeMinutes: 30,
		},
		Strategy: config.StrategyConfig{
			TrailingRatio:      0.5,
			StagnationMinutes:  90,
			StagnationFraction: 0.25,
		},
	}
}

func testClock(t *testing.T, cfg *config.Config) *session.Clock {
	t.Helper()
	clock, err := session.NewClock(cfg.Session)
	assert.NoError(t, err)
	return clock
}

var midSession = time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)

func longPosition() model.Position {
	entry := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)
	return model.Position{
		ID:            5001,
		StopOrderID:   5002,
		Symbol:        "AAPL",
		Direction:     model.DirectionLong,
		Shares:        100,
		EntryTime:     &entry,
		EntryPrice:    101.5,
		StopLossPrice: 100.5,
		TakeProfit:    103.5,
		RangeSize:     1,
		Status:        model.StatusOpen,
	}
}

func TestTrailingStop_Run(t *testing.T) {
	cfg := testConfig()
	clock := testClock(t, cfg)

	newPolicy := func(st *MockStore, brk *MockBroker) *TrailingStop {
		return NewTrailingStop(cfg, clock, st, brk, notifier.NewEvents(nil))
	}

	t.Run("target touch activates the trail", func(t *testing.T) {
		st := newMockStore()
		brk := new(MockBroker)
		policy := newPolicy(st, brk)

		st.positions.On("ListByStatus", mock.Anything, model.StatusOpen).
			Return([]model.Position{longPosition()}, nil)
		brk.On("GetLastPrice", mock.Anything, "AAPL").Return(103.5, nil)
		// trail distance 0.5 * range size 1
		brk.On("ModifyStop", mock.Anything, int64(5002), 103.0).Return(nil)
		st.positions.On("UpdateFields", mock.Anything, int64(5001)).Return(nil)

		assert.NoError(t, policy.Run(context.Background(), midSession))

		assert.Len(t, st.positions.fieldUpdates, 1)
		assert.True(t, st.positions.fieldUpdates[0].StopMoved)
		assert.Equal(t, 103.0, st.positions.fieldUpdates[0].TrailingStop)
	})

	t.Run("below target nothing moves", func(t *testing.T) {
		st := newMockStore()
		brk := new(MockBroker)
		policy := newPolicy(st, brk)

		st.positions.On("ListByStatus", mock.Anything, model.StatusOpen).
			Return([]model.Position{longPosition()}, nil)
		brk.On("GetLastPrice", mock.Anything, "AAPL").Return(103.4, nil)

		assert.NoError(t, policy.Run(context.Background(), midSession))
		brk.AssertNotCalled(t, "ModifyStop", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("active trail advances with price", func(t *testing.T) {
		st := newMockStore()
		brk := new(MockBroker)
		policy := newPolicy(st, brk)

		p := longPosition()
		p.StopMoved = true
		p.TrailingStop = 103.0

		st.positions.On("ListByStatus", mock.Anything, model.StatusOpen).
			Return([]model.Position{p}, nil)
		brk.On("GetLastPrice", mock.Anything, "AAPL").Return(104.0, nil)
		brk.On("ModifyStop", mock.Anything, int64(5002), 103.5).Return(nil)
		st.positions.On("UpdateFields", mock.Anything, int64(5001)).Return(nil)

		assert.NoError(t, policy.Run(context.Background(), midSession))
		assert.Equal(t, 103.5, st.positions.fieldUpdates[0].TrailingStop)
	})

	t.Run("active trail never loosens on a pullback", func(t *testing.T) {
		st := newMockStore()
		brk := new(MockBroker)
		policy := newPolicy(st, brk)

		p := longPosition()
		p.StopMoved = true
		p.TrailingStop = 103.5

		st.positions.On("ListByStatus", mock.Anything, model.StatusOpen).
			Return([]model.Position{p}, nil)
		brk.On("GetLastPrice", mock.Anything, "AAPL").Return(103.7, nil)

		assert.NoError(t, policy.Run(context.Background(), midSession))
		brk.AssertNotCalled(t, "ModifyStop", mock.Anything, mock.Anything, mock.Anything)
		st.positions.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything)
	})

	t.Run("short trail sits above price and tightens downward", func(t *testing.T) {
		st := newMockStore()
		brk := new(MockBroker)
		policy := newPolicy(st, brk)

		p := longPosition()
		p.Direction = model.DirectionShort
		p.EntryPrice = 99.5
		p.TakeProfit = 97.5
		p.StopLossPrice = 100.5

		st.positions.On("ListByStatus", mock.Anything, model.StatusOpen).
			Return([]model.Position{p}, nil)
		brk.On("GetLastPrice", mock.Anything, "AAPL").Return(97.5, nil)
		brk.On("ModifyStop", mock.Anything, int64(5002), 98.0).Return(nil)
		st.positions.On("UpdateFields", mock.Anything, int64(5001)).Return(nil)

		assert.NoError(t, policy.Run(context.Background(), midSession))
		assert.Equal(t, 98.0, st.positions.fieldUpdates[0].TrailingStop)
	})

	t.Run("store is not updated when the broker rejects the move", func(t *testing.T) {
		st := newMockStore()
		brk := new(MockBroker)
		policy := newPolicy(st, brk)

		st.positions.On("ListByStatus", mock.Anything, model.StatusOpen).
			Return([]model.Position{longPosition()}, nil)
		brk.On("GetLastPrice", mock.Anything, "AAPL").Return(103.5, nil)
		brk.On("ModifyStop", mock.Anything, int64(5002), 103.0).Return(assert.AnError)

		assert.Error(t, policy.Run(context.Background(), midSession))
		st.positions.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything)
	})

	t.Run("outside session hours is a no-op", func(t *testing.T) {
		st := newMockStore()
		brk := new(MockBroker)
		policy := newPolicy(st, brk)

		afterClose := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)
		assert.NoError(t, policy.Run(context.Background(), afterClose))
		st.positions.AssertNotCalled(t, "ListByStatus", mock.Anything, mock.Anything)
	})

	t.Run("position opened this tick is not trailed yet", func(t *testing.T) {
		st := newMockStore()
		brk := new(MockBroker)
		policy := newPolicy(st, brk)

		p := longPosition()
		p.EntryTime = &midSession

		st.positions.On("ListByStatus", mock.Anything, model.StatusOpen).
			Return([]model.Position{p}, nil)

		assert.NoError(t, policy.Run(context.Background(), midSession))
		brk.AssertNotCalled(t, "GetLastPrice", mock.Anything, mock.Anything)
	})
}
