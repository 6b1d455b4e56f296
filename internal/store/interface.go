package store

import (
	"context"

	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

// Store is the entry point for database access.
type Store interface {
	Ranges() RangeRepository
	Positions() PositionRepository
	// Close closes the store connection.
	Close() error
}

// RangeRepository persists opening ranges. Ranges are append-only: there is
// no update or delete path.
type RangeRepository interface {
	Save(ctx context.Context, r *model.OpeningRange) error
	Find(ctx context.Context, symbol, sessionDate string) (*model.OpeningRange, error)
	ListByDate(ctx context.Context, sessionDate string) ([]model.OpeningRange, error)
}

// PositionRepository persists positions. UpdateStatus enforces the
// forward-only PENDING -> OPEN -> CLOSED transition order.
type PositionRepository interface {
	Create(ctx context.Context, p *model.Position) error
	FindByID(ctx context.Context, id int64) (*model.Position, error)
	ListByStatus(ctx context.Context, status model.PositionStatus) ([]model.Position, error)
	ListByDate(ctx context.Context, sessionDate string) ([]model.Position, error)
	ListClosedByDate(ctx context.Context, sessionDate string) ([]model.Position, error)
	// CountActive counts PENDING plus OPEN positions.
	CountActive(ctx context.Context) (int, error)
	// HasPositionForSymbol reports whether any position (in any status)
	// exists for the symbol on the given session date.
	HasPositionForSymbol(ctx context.Context, symbol, sessionDate string) (bool, error)
	UpdateStatus(ctx context.Context, id int64, next model.PositionStatus, mutate func(*model.Position)) error
	// UpdateFields applies non-status mutations (trailing stop, marks).
	UpdateFields(ctx context.Context, id int64, mutate func(*model.Position)) error
}
