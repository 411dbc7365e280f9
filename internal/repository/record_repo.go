package repository

import (
	"context"
	"time"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// recordUpdateColumns is the conflict update set for record upserts.
// created_at is deliberately absent: it marks when the listing was first
// seen and must survive re-extraction on later cycles.
var recordUpdateColumns = []string{
	"source_id", "source_listing_key", "title", "company",
	"raw_location_text", "summary", "apply_url", "extracted_at", "updated_at",
}

// RecordRepository handles job record and extraction failure persistence.
type RecordRepository struct {
	db *gorm.DB
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Upsert creates or updates a job record keyed by its derived ID.
// Re-extraction of the same listing overwrites the previous extraction.
func (r *RecordRepository) Upsert(ctx context.Context, record *domain.JobRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(recordUpdateColumns),
	}).Create(record).Error
}

// UpsertBatch upserts a set of records in one statement.
func (r *RecordRepository) UpsertBatch(ctx context.Context, records []domain.JobRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(recordUpdateColumns),
	}).Create(&records).Error
}

// CreationTimes returns the persisted created_at per record ID. Records
// first seen on earlier cycles keep their original timestamp, which feeds
// the pins' first_seen_at.
func (r *RecordRepository) CreationTimes(ctx context.Context, ids []string) (map[string]time.Time, error) {
	times := make(map[string]time.Time, len(ids))
	if len(ids) == 0 {
		return times, nil
	}

	var rows []struct {
		ID        string
		CreatedAt time.Time
	}
	if err := r.db.WithContext(ctx).Model(&domain.JobRecord{}).
		Select("id", "created_at").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		times[row.ID] = row.CreatedAt
	}
	return times, nil
}

// GetByID retrieves a job record by its ID.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.JobRecord, error) {
	var record domain.JobRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBySource retrieves records for one source with pagination.
func (r *RecordRepository) ListBySource(ctx context.Context, sourceID string, limit, offset int) ([]domain.JobRecord, error) {
	var records []domain.JobRecord
	if err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Limit(limit).
		Offset(offset).
		Order("extracted_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CountBySource counts records per source.
func (r *RecordRepository) CountBySource(ctx context.Context, sourceID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.JobRecord{}).
		Where("source_id = ?", sourceID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// RecordFailure stores a permanent extraction failure for a listing.
func (r *RecordRepository) RecordFailure(ctx context.Context, failure *domain.ExtractionFailure) error {
	return r.db.WithContext(ctx).Create(failure).Error
}

// ListFailuresByRun retrieves the extraction failures of one refresh run.
func (r *RecordRepository) ListFailuresByRun(ctx context.Context, runID string) ([]domain.ExtractionFailure, error) {
	var failures []domain.ExtractionFailure
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Find(&failures).Error; err != nil {
		return nil, err
	}
	return failures, nil
}
