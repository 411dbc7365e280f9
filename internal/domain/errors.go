package domain

import "errors"

// Pipeline error taxonomy. Listing-level failures never fail a cycle;
// commit-level failures fail the cycle but never touch the served snapshot.
var (
	// ErrTransientUpstream marks a retryable upstream failure (timeouts,
	// 429/5xx). Callers retry with backoff up to a configured attempt cap.
	ErrTransientUpstream = errors.New("transient upstream error")

	// ErrPermanentExtraction marks a listing the agent cannot structure.
	// The listing is recorded and skipped for this cycle.
	ErrPermanentExtraction = errors.New("permanent extraction failure")

	// ErrUnresolvableLocation marks a location the geocoder definitively
	// does not know. The record is retained with an unresolved GeoResult.
	ErrUnresolvableLocation = errors.New("unresolvable location")

	// ErrCommitFailed marks a snapshot commit failure. The prior snapshot
	// remains live.
	ErrCommitFailed = errors.New("snapshot commit failed")
)
