package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/domain"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"

	"gorm.io/gorm"
)

type positionRepo struct {
	db *gorm.DB
}

func (r *positionRepo) Create(ctx context.Context, p *model.Position) error {
	if p.ID == 0 {
		return &domain.ValidationError{Field: "id", Reason: "position id must be the entry order id"}
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *positionRepo) FindByID(ctx context.Context, id int64) (*model.Position, error) {
	var p model.Position
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPositionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *positionRepo) ListByStatus(ctx context.Context, status model.PositionStatus) ([]model.Position, error) {
	var recs []model.Position
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at asc").
		Find(&recs).Error
	return recs, err
}

func (r *positionRepo) ListByDate(ctx context.Context, sessionDate string) ([]model.Position, error) {
	var recs []model.Position
	err := r.db.WithContext(ctx).
		Where("session_date = ?", sessionDate).
		Order("created_at asc").
		Find(&recs).Error
	return recs, err
}

func (r *positionRepo) ListClosedByDate(ctx context.Context, sessionDate string) ([]model.Position, error) {
	var recs []model.Position
	err := r.db.WithContext(ctx).
		Where("session_date = ? AND status = ?", sessionDate, model.StatusClosed).
		Order("exit_time asc").
		Find(&recs).Error
	return recs, err
}

func (r *positionRepo) CountActive(ctx context.Context) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("status IN ?", []model.PositionStatus{model.StatusPending, model.StatusOpen}).
		Count(&n).Error
	return int(n), err
}

func (r *positionRepo) HasPositionForSymbol(ctx context.Context, symbol, sessionDate string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("symbol = ? AND session_date = ?", symbol, sessionDate).
		Count(&n).Error
	return n > 0, err
}

// UpdateStatus advances a position along PENDING -> OPEN -> CLOSED.
// Transitions are strictly forward: a backward or same-status move fails
// with an InvariantViolation and writes nothing. PENDING -> CLOSED is
// allowed for positions liquidated before their entry ever filled.
func (r *positionRepo) UpdateStatus(ctx context.Context, id int64, next model.PositionStatus, mutate func(*model.Position)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Position
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPositionNotFound
			}
			return err
		}
		if next.Rank() <= p.Status.Rank() {
			return &domain.InvariantViolation{
				Op:     "position.UpdateStatus",
				Detail: fmt.Sprintf("position %d: %s -> %s", id, p.Status, next),
			}
		}
		p.Status = next
		if mutate != nil {
			mutate(&p)
		}
		p.UpdatedAt = time.Now()
		return tx.Save(&p).Error
	})
}

func (r *positionRepo) UpdateFields(ctx context.Context, id int64, mutate func(*model.Position)) error {
	if mutate == nil {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Position
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPositionNotFound
			}
			return err
		}
		prev := p.Status
		mutate(&p)
		if p.Status != prev {
			return &domain.InvariantViolation{
				Op:     "position.UpdateFields",
				Detail: fmt.Sprintf("position %d: status change %s -> %s outside UpdateStatus", id, prev, p.Status),
			}
		}
		p.UpdatedAt = time.Now()
		return tx.Save(&p).Error
	})
}
