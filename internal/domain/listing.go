package domain

import "time"

// RawListing is the opaque payload fetched from a job source connector.
// It is immutable once fetched and is the unit handed to the extraction agent.
type RawListing struct {
	SourceID  string    // connector identifier, e.g. "hnhiring"
	SourceKey string    // natural key within the source (comment ID, slug)
	Payload   []byte    // raw upstream content (HTML, JSON, plain text)
	FetchedAt time.Time
}

// JobRecord is the structured result of extracting one RawListing.
// The ID is derived deterministically from (source_id, source_listing_key),
// so re-extracting the same listing yields the same record identity.
type JobRecord struct {
	ID               string    `gorm:"type:text;primaryKey" json:"id"`
	SourceID         string    `gorm:"type:text;not null;index:idx_records_source,unique" json:"source_id"`
	SourceListingKey string    `gorm:"type:text;not null;index:idx_records_source,unique" json:"source_listing_key"`
	Title            string    `gorm:"type:text;not null" json:"title"`
	Company          string    `gorm:"type:text;not null" json:"company"`
	RawLocationText  string    `gorm:"type:text" json:"raw_location_text"`
	Summary          string    `gorm:"type:text" json:"summary"`
	ApplyURL         string    `gorm:"type:text" json:"apply_url,omitempty"`
	ExtractedAt      time.Time `json:"extracted_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (JobRecord) TableName() string {
	return "job_records"
}

// FailureReason classifies a permanent extraction failure.
type FailureReason string

const (
	FailureMalformedInput      FailureReason = "malformed_input"
	FailureAmbiguousContent    FailureReason = "ambiguous_content"
	FailureUpstreamToolFailure FailureReason = "upstream_tool_failure"
)

// ExtractionFailure records a listing that could not be extracted this cycle.
// The listing is skipped, not fatal to the run.
type ExtractionFailure struct {
	ID               uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID            string        `gorm:"type:text;index" json:"run_id"`
	SourceID         string        `gorm:"type:text;not null" json:"source_id"`
	SourceListingKey string        `gorm:"type:text;not null" json:"source_listing_key"`
	Reason           FailureReason `gorm:"type:text;not null" json:"reason"`
	Message          string        `gorm:"type:text" json:"message,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

func (ExtractionFailure) TableName() string {
	return "extraction_failures"
}
