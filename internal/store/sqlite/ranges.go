package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/domain"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"

	"gorm.io/gorm"
)

type rangeRepo struct {
	db *gorm.DB
}

func (r *rangeRepo) Save(ctx context.Context, rec *model.OpeningRange) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *rangeRepo) Find(ctx context.Context, symbol, sessionDate string) (*model.OpeningRange, error) {
	var rec model.OpeningRange
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND session_date = ?", symbol, sessionDate).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRangeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *rangeRepo) ListByDate(ctx context.Context, sessionDate string) ([]model.OpeningRange, error) {
	var recs []model.OpeningRange
	err := r.db.WithContext(ctx).
		Where("session_date = ?", sessionDate).
		Order("symbol asc").
		Find(&recs).Error
	return recs, err
}
