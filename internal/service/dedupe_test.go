package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/indrayudh19/Job-Mapper/internal/domain"
)

func TestCanonicalIdentity_NormalizationCollapses(t *testing.T) {
	geo := &domain.GeoResult{Lat: 12.9716, Lon: 77.5946, Resolved: true}

	base := &domain.JobRecord{Title: "Senior Backend Engineer", Company: "Acme Robotics"}
	baseIdentity := CanonicalIdentity(base, geo)

	tests := []struct {
		name   string
		record domain.JobRecord
		geo    domain.GeoResult
		same   bool
	}{
		{
			name:   "case and whitespace variations",
			record: domain.JobRecord{Title: "  SENIOR   Backend\tEngineer ", Company: "acme robotics"},
			geo:    domain.GeoResult{Lat: 12.9716, Lon: 77.5946, Resolved: true},
			same:   true,
		},
		{
			name:   "diacritic variation",
			record: domain.JobRecord{Title: "Sénior Backend Engineer", Company: "Acme Robotics"},
			geo:    domain.GeoResult{Lat: 12.9716, Lon: 77.5946, Resolved: true},
			same:   true,
		},
		{
			name:   "coordinate jitter inside bucket",
			record: domain.JobRecord{Title: "Senior Backend Engineer", Company: "Acme Robotics"},
			geo:    domain.GeoResult{Lat: 12.9712, Lon: 77.5941, Resolved: true},
			same:   true,
		},
		{
			name:   "different city",
			record: domain.JobRecord{Title: "Senior Backend Engineer", Company: "Acme Robotics"},
			geo:    domain.GeoResult{Lat: 19.0760, Lon: 72.8777, Resolved: true},
			same:   false,
		},
		{
			name:   "different company",
			record: domain.JobRecord{Title: "Senior Backend Engineer", Company: "Beta Labs"},
			geo:    domain.GeoResult{Lat: 12.9716, Lon: 77.5946, Resolved: true},
			same:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalIdentity(&tt.record, &tt.geo)
			if (got == baseIdentity) != tt.same {
				t.Errorf("identity %q, base %q, want same=%v", got, baseIdentity, tt.same)
			}
		})
	}
}

func TestCanonicalIdentity_UnresolvedBucketsOnRawText(t *testing.T) {
	a := &domain.JobRecord{Title: "Engineer", Company: "Acme", RawLocationText: "Atlantis"}
	b := &domain.JobRecord{Title: "Engineer", Company: "Acme", RawLocationText: "atlantis "}
	c := &domain.JobRecord{Title: "Engineer", Company: "Acme", RawLocationText: "Lemuria"}
	unresolved := &domain.GeoResult{Resolved: false}

	if CanonicalIdentity(a, unresolved) != CanonicalIdentity(b, unresolved) {
		t.Error("expected same identity for equivalent raw location text")
	}
	if CanonicalIdentity(a, unresolved) == CanonicalIdentity(c, unresolved) {
		t.Error("expected different identity for different raw location text")
	}
}

func TestPinIDFromIdentity_StableAndParseable(t *testing.T) {
	identity := CanonicalIdentity(
		&domain.JobRecord{Title: "Engineer", Company: "Acme"},
		&domain.GeoResult{Lat: 12.97, Lon: 77.59, Resolved: true},
	)

	id1 := PinIDFromIdentity(identity)
	id2 := PinIDFromIdentity(identity)
	if id1 != id2 {
		t.Errorf("pin ID not deterministic: %q vs %q", id1, id2)
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("pin ID %q is not a valid UUID: %v", id1, err)
	}
}

func TestBuildPins_MergesDuplicates(t *testing.T) {
	geo := domain.GeoResult{Lat: 12.9716, Lon: 77.5946, Resolved: true}
	older := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	records := []ResolvedRecord{
		{
			Record: domain.JobRecord{
				ID: "rec-b", Title: "Backend Engineer", Company: "Acme",
				Summary: "old summary", ExtractedAt: older, CreatedAt: older,
			},
			Geo: geo,
		},
		{
			Record: domain.JobRecord{
				ID: "rec-a", Title: "Backend Engineer", Company: "Acme",
				Summary: "new summary", ExtractedAt: newer, CreatedAt: newer,
			},
			Geo: geo,
		},
	}

	deduper := NewDeduper()
	pins, unresolved := deduper.BuildPins(records)

	if unresolved != 0 {
		t.Errorf("expected 0 unresolved, got %d", unresolved)
	}
	if len(pins) != 1 {
		t.Fatalf("expected 1 pin, got %d", len(pins))
	}

	pin := pins[0]
	if pin.Summary != "new summary" {
		t.Errorf("expected newest extraction to win display fields, got %q", pin.Summary)
	}
	if len(pin.RecordIDs) != 2 || pin.RecordIDs[0] != "rec-a" || pin.RecordIDs[1] != "rec-b" {
		t.Errorf("expected sorted union of record IDs, got %v", pin.RecordIDs)
	}
	if !pin.FirstSeenAt.Equal(older) {
		t.Errorf("expected first seen %v, got %v", older, pin.FirstSeenAt)
	}
	if !pin.LastSeenAt.Equal(newer) {
		t.Errorf("expected last seen %v, got %v", newer, pin.LastSeenAt)
	}
}

func TestBuildPins_UnresolvedExcluded(t *testing.T) {
	now := time.Now()
	records := []ResolvedRecord{
		{
			Record: domain.JobRecord{ID: "r1", Title: "Engineer", Company: "Acme", ExtractedAt: now},
			Geo:    domain.GeoResult{Lat: 12.97, Lon: 77.59, Resolved: true},
		},
		{
			Record: domain.JobRecord{ID: "r2", Title: "Engineer", Company: "Beta", RawLocationText: "nowhere", ExtractedAt: now},
			Geo:    domain.GeoResult{Resolved: false},
		},
	}

	pins, unresolved := NewDeduper().BuildPins(records)

	if unresolved != 1 {
		t.Errorf("expected 1 unresolved, got %d", unresolved)
	}
	if len(pins) != 1 {
		t.Fatalf("expected 1 pin, got %d", len(pins))
	}
	if pins[0].RecordIDs[0] != "r1" {
		t.Errorf("expected pin from resolved record, got %v", pins[0].RecordIDs)
	}
}

func TestBuildPins_DeterministicOrder(t *testing.T) {
	now := time.Now()
	geo := domain.GeoResult{Lat: 12.97, Lon: 77.59, Resolved: true}
	records := []ResolvedRecord{
		{Record: domain.JobRecord{ID: "r1", Title: "Engineer", Company: "Acme", ExtractedAt: now}, Geo: geo},
		{Record: domain.JobRecord{ID: "r2", Title: "Designer", Company: "Beta", ExtractedAt: now}, Geo: geo},
		{Record: domain.JobRecord{ID: "r3", Title: "Manager", Company: "Gamma", ExtractedAt: now}, Geo: geo},
	}

	first, _ := NewDeduper().BuildPins(records)
	// Reverse input order
	reversed := []ResolvedRecord{records[2], records[1], records[0]}
	second, _ := NewDeduper().BuildPins(reversed)

	if len(first) != len(second) {
		t.Fatalf("pin counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("pin order differs at %d: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
}
