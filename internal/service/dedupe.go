package service

import (
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/indrayudh19/Job-Mapper/internal/domain"
)

// pinNamespace is the fixed UUID namespace for deterministic pin IDs.
var pinNamespace = uuid.MustParse("9f2c1a34-7b5e-4d08-9c66-2f8a41d0be71")

// ResolvedRecord pairs a job record with its location resolution outcome.
type ResolvedRecord struct {
	Record domain.JobRecord
	Geo    domain.GeoResult
}

// CanonicalIdentity derives the dedupe key for a record: normalized title,
// normalized company, and a location bucket. Records that agree on all
// three collapse into one pin across sources and cycles.
func CanonicalIdentity(record *domain.JobRecord, geo *domain.GeoResult) string {
	title := normalizeField(record.Title)
	company := normalizeField(record.Company)
	bucket := locationBucket(record, geo)
	sum := sha1.Sum([]byte(title + "|" + company + "|" + bucket))
	return fmt.Sprintf("%x", sum)
}

// PinIDFromIdentity derives the stable pin ID from a canonical identity.
// The ID is a name-based UUID so it doubles as a vector index point ID.
func PinIDFromIdentity(identity string) string {
	return uuid.NewSHA1(pinNamespace, []byte(identity)).String()
}

// locationBucket buckets resolved coordinates to two decimal places
// (roughly a kilometer), so minor geocoder jitter does not split pins.
// Unresolved records bucket on their normalized raw text instead.
func locationBucket(record *domain.JobRecord, geo *domain.GeoResult) string {
	if geo != nil && geo.Resolved {
		return fmt.Sprintf("%.2f,%.2f", geo.Lat, geo.Lon)
	}
	return "raw:" + NormalizeLocation(record.RawLocationText)
}

// normalizeField canonicalizes a title or company for identity derivation.
func normalizeField(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = foldDiacritics(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '.' || r == ';'
	})
	return strings.Join(fields, " ")
}

// Deduper folds resolved records into pins.
type Deduper struct{}

// NewDeduper creates a new deduper.
func NewDeduper() *Deduper {
	return &Deduper{}
}

// BuildPins groups resolved records by canonical identity and merges each
// group into one pin. Only resolved records produce pins; unresolved
// records are counted but never served. Output is sorted by pin ID so
// snapshots are deterministic for identical input.
func (d *Deduper) BuildPins(records []ResolvedRecord) (pins []domain.Pin, unresolved int) {
	groups := make(map[string][]ResolvedRecord)
	for _, rr := range records {
		if !rr.Geo.Resolved {
			unresolved++
			continue
		}
		identity := CanonicalIdentity(&rr.Record, &rr.Geo)
		groups[identity] = append(groups[identity], rr)
	}

	pins = make([]domain.Pin, 0, len(groups))
	for identity, group := range groups {
		pins = append(pins, mergeGroup(identity, group))
	}

	sort.Slice(pins, func(i, j int) bool {
		return pins[i].ID < pins[j].ID
	})
	return pins, unresolved
}

// firstSeen falls back to the extraction time for records not yet persisted.
func firstSeen(record *domain.JobRecord) time.Time {
	if record.CreatedAt.IsZero() {
		return record.ExtractedAt
	}
	return record.CreatedAt
}

// mergeGroup merges duplicate records into one pin. Display fields come
// from the newest extraction; record IDs are the sorted union; the seen
// window spans the whole group.
func mergeGroup(identity string, group []ResolvedRecord) domain.Pin {
	newest := group[0]
	first := firstSeen(&group[0].Record)
	last := group[0].Record.ExtractedAt
	ids := make([]string, 0, len(group))

	for _, rr := range group {
		ids = append(ids, rr.Record.ID)
		if rr.Record.ExtractedAt.After(newest.Record.ExtractedAt) {
			newest = rr
		}
		if fs := firstSeen(&rr.Record); fs.Before(first) {
			first = fs
		}
		if rr.Record.ExtractedAt.After(last) {
			last = rr.Record.ExtractedAt
		}
	}
	sort.Strings(ids)

	return domain.Pin{
		ID:           PinIDFromIdentity(identity),
		Lat:          newest.Geo.Lat,
		Lon:          newest.Geo.Lon,
		Title:        newest.Record.Title,
		Company:      newest.Record.Company,
		Summary:      newest.Record.Summary,
		LocationText: newest.Record.RawLocationText,
		ApplyURL:     newest.Record.ApplyURL,
		RecordIDs:    ids,
		FirstSeenAt:  first,
		LastSeenAt:   last,
	}
}
