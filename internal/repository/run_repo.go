package repository

import (
	"context"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"gorm.io/gorm"
)

// RunRepository handles refresh run records.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run record.
func (r *RunRepository) Create(ctx context.Context, run *domain.RefreshRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update saves the run record with updated counters and status.
func (r *RunRepository) Update(ctx context.Context, run *domain.RefreshRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// Latest returns the most recent run, or gorm.ErrRecordNotFound.
func (r *RunRepository) Latest(ctx context.Context) (*domain.RefreshRun, error) {
	var run domain.RefreshRun
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns recent runs with pagination.
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]domain.RefreshRun, error) {
	var runs []domain.RefreshRun
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
