package repository

import (
	"context"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"gorm.io/gorm"
)

// SnapshotRepository persists pin snapshots. Snapshots are append-only;
// history is pruned after successful commits.
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save persists a new snapshot and fills in its generation number.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *domain.PinSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// Latest returns the most recently committed snapshot, or gorm.ErrRecordNotFound.
func (r *SnapshotRepository) Latest(ctx context.Context) (*domain.PinSnapshot, error) {
	var snapshot domain.PinSnapshot
	if err := r.db.WithContext(ctx).
		Order("generation DESC").
		First(&snapshot).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Get retrieves a snapshot by generation.
func (r *SnapshotRepository) Get(ctx context.Context, generation uint64) (*domain.PinSnapshot, error) {
	var snapshot domain.PinSnapshot
	if err := r.db.WithContext(ctx).First(&snapshot, "generation = ?", generation).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Prune deletes all but the newest keep snapshots.
func (r *SnapshotRepository) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	var cutoff struct {
		Generation uint64
	}
	err := r.db.WithContext(ctx).Model(&domain.PinSnapshot{}).
		Select("generation").
		Order("generation DESC").
		Offset(keep - 1).
		Limit(1).
		Scan(&cutoff).Error
	if err != nil || cutoff.Generation == 0 {
		return err
	}
	return r.db.WithContext(ctx).
		Where("generation < ?", cutoff.Generation).
		Delete(&domain.PinSnapshot{}).Error
}
