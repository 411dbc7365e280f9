package repository

import (
	"context"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GeoCacheRepository handles the persistent location resolver cache.
type GeoCacheRepository struct {
	db *gorm.DB
}

// NewGeoCacheRepository creates a new GeoCacheRepository.
func NewGeoCacheRepository(db *gorm.DB) *GeoCacheRepository {
	return &GeoCacheRepository{db: db}
}

// Get retrieves a cache entry by normalized location text.
func (r *GeoCacheRepository) Get(ctx context.Context, normalizedText string) (*domain.GeoCacheEntry, error) {
	var entry domain.GeoCacheEntry
	if err := r.db.WithContext(ctx).First(&entry, "normalized_text = ?", normalizedText).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put creates or updates a cache entry keyed by normalized text.
func (r *GeoCacheRepository) Put(ctx context.Context, entry *domain.GeoCacheEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "normalized_text"}},
		UpdateAll: true,
	}).Create(entry).Error
}

// SeedMissing inserts seed entries without touching existing rows, so a
// live-resolved entry is never downgraded back to its seed value.
func (r *GeoCacheRepository) SeedMissing(ctx context.Context, entries []domain.GeoCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "normalized_text"}},
		DoNothing: true,
	}).Create(&entries).Error
}

// CountResolved counts resolved cache entries.
func (r *GeoCacheRepository) CountResolved(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.GeoCacheEntry{}).
		Where("resolved = ?", true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
