package orb

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
	args := m.Called(ctx, req)
	return args.Get(0).(broker.BracketResult), args.Error(1)
}

func (m *MockBroker) ModifyStop(ctx context.Context, stopOrderID int64, newPrice float64) error {
	return nil
}

func (m *MockBroker) CancelOrder(ctx context.Context, orderID int64) error { return nil }

func (m *MockBroker) OrderStatus(ctx context.Context, orderID int64) (broker.OrderStatus, error) {
	return broker.OrderStatus{}, nil
}

func (m *MockBroker) PlaceMarketClose(ctx context.Context, symbol string, direction model.Direction, shares int) (int64, error) {
	return 0, nil
}

func (m *MockBroker) GetCompletedBar(ctx context.Context, symbol string, durationMinutes int) (broker.Bar, error) {
	args := m.Called(ctx, symbol, durationMinutes)
	return args.Get(0).(broker.Bar), args.Error(1)
}

func (m *MockBroker) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}

func (m *MockBroker) AccountValue(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

type MockStore struct {
	ranges    *MockRangeRepo
	positions *MockPositionRepo
}

func newMockStore() *MockStore {
	return &MockStore{ranges: new(MockRangeRepo), positions: new(MockPositionRepo)}
}

func (m *MockStore) Ranges() store.RangeRepository       { return m.ranges }
func (m *MockStore) Positions() store.PositionRepository { return m.positions }
func (m *MockStore) Close() error                        { return nil }

type MockRangeRepo struct {
	mock.Mock
}

func (m *MockRangeRepo) Save(ctx context.Context, r *model.OpeningRange) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRangeRepo) Find(ctx context.Context, symbol, sessionDate string) (*model.OpeningRange, error) {
	args := m.Called(ctx, symbol, sessionDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OpeningRange), args.Error(1)
}

func (m *MockRangeRepo) ListByDate(ctx context.Context, sessionDate string) ([]model.OpeningRange, error) {
	return nil, nil
}

type MockPositionRepo struct {
	mock.Mock
}

func (m *MockPositionRepo) Create(ctx context.Context, p *model.Position) error { return nil }

func (m *MockPositionRepo) FindByID(ctx context.Context, id int64) (*model.Position, error) {
	return nil, nil
}

func (m *MockPositionRepo) ListByStatus(ctx context.Context, status model.PositionStatus) ([]model.Position, error) {
	return nil, nil
}

func (m *MockPositionRepo) ListByDate(ctx context.Context, sessionDate string) ([]model.Position, error) {
	return nil, nil
}

func (m *MockPositionRepo) ListClosedByDate(ctx context.Context, sessionDate string) ([]model.Position, error) {
	return nil, nil
}

func (m *MockPositionRepo) CountActive(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockPositionRepo) HasPositionForSymbol(ctx context.Context, symbol, sessionDate string) (bool, error) {
	args := m.Called(ctx, symbol, sessionDate)
	return args.Bool(0), args.Error(1)
}

func (m *MockPositionRepo) UpdateStatus(ctx context.Context, id int64, next model.PositionStatus, mutate func(*model.Position)) error {
	return nil
}

func (m *MockPositionRepo) UpdateFields(ctx context.Context, id int64, mutate func(*model.Position)) error {
	return nil
}
