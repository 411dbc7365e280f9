package remoteok

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"golang.org/x/time/rate"
)

const (
	SourceID   = "remoteok"
	SourceName = "RemoteOK"
)

// Config holds the adapter configuration.
type Config struct {
	BaseURL    string
	RatePerSec float64
	Timeout    time.Duration
}

// Adapter fetches listings from the RemoteOK JSON API. The API returns the
// whole board in one response; the first element is a legal notice and is
// skipped. Each remaining element is one raw listing.
type Adapter struct {
	client  *resty.Client
	cfg     Config
	limiter *rate.Limiter

	items  []json.RawMessage
	loaded bool
}

// NewAdapter creates a new RemoteOK adapter.
func NewAdapter(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://remoteok.com/api"
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1.0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", "india-job-map")

	return &Adapter{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

// SourceID returns the unique identifier for this source.
func (a *Adapter) SourceID() string {
	return SourceID
}

// DisplayName returns a human-readable name for this source.
func (a *Adapter) DisplayName() string {
	return SourceName
}

// FetchBatch fetches a batch of listings. The cursor is the offset into the
// board listing fetched at the start of the pull. An empty cursor starts a
// fresh pull and re-fetches the board, so every refresh cycle sees the
// current listings.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]domain.RawListing, string, error) {
	if cursor == "" || !a.loaded {
		if err := a.loadBoard(ctx); err != nil {
			return nil, "", err
		}
	}

	start := 0
	if cursor != "" {
		idx, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		start = idx
	}
	if start >= len(a.items) {
		return nil, "", nil
	}

	end := start + limit
	if end > len(a.items) {
		end = len(a.items)
	}

	now := time.Now().UTC()
	listings := make([]domain.RawListing, 0, end-start)
	for i, raw := range a.items[start:end] {
		key := listingKey(raw)
		if key == "" {
			key = strconv.Itoa(start + i)
		}
		listings = append(listings, domain.RawListing{
			SourceID:  SourceID,
			SourceKey: key,
			Payload:   []byte(raw),
			FetchedAt: now,
		})
	}

	nextCursor := ""
	if end < len(a.items) {
		nextCursor = strconv.Itoa(end)
	}
	return listings, nextCursor, nil
}

// loadBoard fetches the full board and caches the listing elements for the
// duration of one pull.
func (a *Adapter) loadBoard(ctx context.Context) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := a.client.R().
		SetContext(ctx).
		Get(a.cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("fetching RemoteOK board: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("RemoteOK API returned HTTP %d", resp.StatusCode())
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &elements); err != nil {
		return fmt.Errorf("decoding RemoteOK response: %w", err)
	}

	// First element is metadata, not a listing.
	if len(elements) > 0 {
		elements = elements[1:]
	}

	a.items = elements
	a.loaded = true
	return nil
}

// listingKey extracts the stable natural key from a listing element. The
// API has emitted ids both as strings and as numbers, so both are accepted.
func listingKey(raw json.RawMessage) string {
	var probe struct {
		ID   any    `json:"id"`
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	if probe.Slug != "" {
		return probe.Slug
	}
	switch id := probe.ID.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}
