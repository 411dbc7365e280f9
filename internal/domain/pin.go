package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Pin is a map marker aggregating one or more job records that share the
// same canonical identity. The ID is derived from that identity, so it is
// stable across refresh cycles as long as the identity is unchanged.
type Pin struct {
	ID           string      `json:"id"`
	Lat          float64     `json:"lat"`
	Lon          float64     `json:"lon"`
	Title        string      `json:"title"`
	Company      string      `json:"company"`
	Summary      string      `json:"summary,omitempty"`
	LocationText string      `json:"location_text,omitempty"`
	ApplyURL     string      `json:"apply_url,omitempty"`
	RecordIDs    StringArray `json:"record_ids"`
	FirstSeenAt  time.Time   `json:"first_seen_at"`
	LastSeenAt   time.Time   `json:"last_seen_at"`
}

// PinList stores the pins of a snapshot as a JSON column.
type PinList []Pin

// Value implements the driver.Valuer interface for database serialization.
func (p PinList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *PinList) Scan(value interface{}) error {
	if value == nil {
		*p = PinList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan PinList")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, p)
}

// PinSnapshot is an immutable, versioned collection of pins. Snapshots are
// never mutated in place; a refresh commits a new one that atomically
// replaces the previous from the reader's point of view.
type PinSnapshot struct {
	Generation  uint64    `gorm:"primaryKey;autoIncrement" json:"generation"`
	GeneratedAt time.Time `json:"generated_at"`
	RunID       string    `gorm:"type:text;index" json:"run_id"`
	Pins        PinList   `gorm:"type:text" json:"pins"`
	CreatedAt   time.Time `json:"created_at"`
}

func (PinSnapshot) TableName() string {
	return "pin_snapshots"
}
