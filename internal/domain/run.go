package domain

import "time"

// RunStatus represents the lifecycle state of a refresh cycle.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial" // committed, but some sources or listings failed
	RunStatusFailed    RunStatus = "failed"  // nothing committed, prior snapshot stays live
	RunStatusCancelled RunStatus = "cancelled"
)

// RefreshRun records one full pull-extract-resolve-dedupe-commit cycle
// and its progress counters.
type RefreshRun struct {
	ID                 string     `gorm:"type:text;primaryKey" json:"id"`
	Status             RunStatus  `gorm:"type:text;default:running;index" json:"status"`
	FetchedListings    int        `gorm:"default:0" json:"fetched_listings"`
	FailedSources      int        `gorm:"default:0" json:"failed_sources"`
	ExtractedRecords   int        `gorm:"default:0" json:"extracted_records"`
	FailedExtractions  int        `gorm:"default:0" json:"failed_extractions"`
	ResolvedLocations  int        `gorm:"default:0" json:"resolved_locations"`
	UnresolvedRecords  int        `gorm:"default:0" json:"unresolved_records"`
	PinCount           int        `gorm:"default:0" json:"pin_count"`
	SnapshotGeneration uint64     `gorm:"default:0" json:"snapshot_generation"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	ErrorLog           string     `gorm:"type:text" json:"error_log,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (RefreshRun) TableName() string {
	return "refresh_runs"
}
