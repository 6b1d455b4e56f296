package exit

import (
	"context"

	"github.com/frankgibbs/algolearn-orb/internal/gateway/broker"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"

	"github.com/stretchr/testify/mock"
)

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) PlaceBracket(ctx context.Context, req broker.BracketRequest) (broker.BracketResult, error) {
	return broker.BracketResult{}, nil
}

func (m *MockBroker) ModifyStop(ctx context.Context, stopOrderID int64, newPrice float64) error {
	args := m.Called(ctx, stopOrderID, newPrice)
	return args.Error(0)
}

func (m *MockBroker) CancelOrder(ctx context.Context, orderID int64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockBroker) OrderStatus(ctx context.Context, orderID int64) (broker.OrderStatus, error) {
	return broker.OrderStatus{}, nil
}

func (m *MockBroker) PlaceMarketClose(ctx context.Context, symbol string, direction model.Direction, shares int) (int64, error) {
	args := m.Called(ctx, symbol, direction, shares)
	return int64(args.Int(0)), args.Error(1)
}

func (m *MockBroker) GetCompletedBar(ctx context.Context, symbol string, durationMinutes int) (broker.Bar, error) {
	return broker.Bar{}, nil
}

func (m *MockBroker) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockBroker) AccountValue(ctx context.Context) (float64, error) { return 0, nil }

type MockStore struct {
	positions *MockPositionRepo
}

func newMockStore() *MockStore {
	return &MockStore{positions: new(MockPositionRepo)}
}

func (m *MockStore) Ranges() store.RangeRepository       { return nil }
func (m *MockStore) Positions() store.PositionRepository { return m.positions }
func (m *MockStore) Close() error                        { return nil }

type MockPositionRepo struct {
	mock.Mock

	statusUpdates []model.Position
	fieldUpdates  []model.Position
}

func (m *MockPositionRepo) Create(ctx context.Context, p *model.Position) error { return nil }

func (m *MockPositionRepo) FindByID(ctx context.Context, id int64) (*model.Position, error) {
	return nil, nil
}

func (m *MockPositionRepo) ListByStatus(ctx context.Context, status model.PositionStatus) ([]model.Position, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Position), args.Error(1)
}

func (m *MockPositionRepo) ListByDate(ctx context.Context, sessionDate string) ([]model.Position, error) {
	return nil, nil
}

func (m *MockPositionRepo) ListClosedByDate(ctx context.Context, sessionDate string) ([]model.Position, error) {
	args := m.Called(ctx, sessionDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Position), args.Error(1)
}

func (m *MockPositionRepo) CountActive(ctx context.Context) (int, error) { return 0, nil }

func (m *MockPositionRepo) HasPositionForSymbol(ctx context.Context, symbol, sessionDate string) (bool, error) {
	return false, nil
}

func (m *MockPositionRepo) UpdateStatus(ctx context.Context, id int64, next model.PositionStatus, mutate func(*model.Position)) error {
	args := m.Called(ctx, id, next)
	if args.Error(0) == nil {
		p := model.Position{ID: id, Status: next}
		if mutate != nil {
			mutate(&p)
		}
		m.statusUpdates = append(m.statusUpdates, p)
	}
	return args.Error(0)
}

func (m *MockPositionRepo) UpdateFields(ctx context.Context, id int64, mutate func(*model.Position)) error {
	args := m.Called(ctx, id)
	if args.Error(0) == nil {
		p := model.Position{ID: id}
		if mutate != nil {
			mutate(&p)
		}
		m.fieldUpdates = append(m.fieldUpdates, p)
	}
	return args.Error(0)
}
