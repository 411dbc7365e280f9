package hnhiring

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
	SourceID   = "hnhiring"
	SourceName = "Hacker News Who's Hiring"
)

// Config holds the adapter configuration.
type Config struct {
	SearchBaseURL string  // Algolia HN search API, used to discover the latest thread
	ItemBaseURL   string  // Firebase item API
	ThreadID      int     // explicit thread ID; 0 discovers the latest
	RatePerSec    float64 // request rate toward both endpoints
	Timeout       time.Duration
}

// Adapter fetches top-level comments of a monthly "Ask HN: Who is hiring?"
// thread. Each comment is one raw listing; the comment item JSON is the
// opaque payload handed to extraction.
type Adapter struct {
	client  *resty.Client
	cfg     Config
	limiter *rate.Limiter

	threadID int
	kids     []int
	loaded   bool
}

// NewAdapter creates a new Hacker News hiring-thread adapter.
func NewAdapter(cfg Config) *Adapter {
	if cfg.SearchBaseURL == "" {
		cfg.SearchBaseURL = "https://hn.algolia.com/api/v1"
	}
	if cfg.ItemBaseURL == "" {
		cfg.ItemBaseURL = "https://hacker-news.firebaseio.com/v0"
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2.0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)

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

type searchResponse struct {
	Hits []struct {
		ObjectID  string `json:"objectID"`
		Title     string `json:"title"`
		CreatedAt int64  `json:"created_at_i"`
	} `json:"hits"`
}

type item struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Text    string `json:"text"`
	By      string `json:"by"`
	Time    int64  `json:"time"`
	Kids    []int  `json:"kids"`
	Deleted bool   `json:"deleted"`
	Dead    bool   `json:"dead"`
}

// FetchBatch fetches a batch of hiring-thread comments. The cursor is the
// index into the thread's top-level comment list. An empty cursor starts a
// fresh pull and re-resolves the thread, so every refresh cycle sees new
// comments and the next monthly thread.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]domain.RawListing, string, error) {
	if cursor == "" || !a.loaded {
		if err := a.loadThread(ctx); err != nil {
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
	if start >= len(a.kids) {
		return nil, "", nil
	}

	end := start + limit
	if end > len(a.kids) {
		end = len(a.kids)
	}

	listings := make([]domain.RawListing, 0, end-start)
	for _, commentID := range a.kids[start:end] {
		if err := a.limiter.Wait(ctx); err != nil {
			return listings, "", err
		}

		payload, it, err := a.fetchItem(ctx, commentID)
		if err != nil {
			// Partial failure: return what we have and signal it explicitly.
			return listings, "", fmt.Errorf("fetching comment %d: %w", commentID, err)
		}
		if it.Deleted || it.Dead || it.Text == "" {
			continue
		}

		listings = append(listings, domain.RawListing{
			SourceID:  SourceID,
			SourceKey: strconv.Itoa(commentID),
			Payload:   payload,
			FetchedAt: time.Now().UTC(),
		})
	}

	nextCursor := ""
	if end < len(a.kids) {
		nextCursor = strconv.Itoa(end)
	}
	return listings, nextCursor, nil
}

// loadThread resolves the hiring thread and caches its comment IDs for the
// duration of one pull.
func (a *Adapter) loadThread(ctx context.Context) error {
	threadID := a.cfg.ThreadID
	if threadID == 0 {
		id, err := a.discoverLatestThread(ctx)
		if err != nil {
			return err
		}
		threadID = id
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	_, thread, err := a.fetchItem(ctx, threadID)
	if err != nil {
		return fmt.Errorf("fetching hiring thread %d: %w", threadID, err)
	}
	if len(thread.Kids) == 0 {
		return fmt.Errorf("hiring thread %d has no comments", threadID)
	}

	a.threadID = threadID
	a.kids = thread.Kids
	a.loaded = true
	return nil
}

// discoverLatestThread searches Algolia for the newest whoishiring thread.
func (a *Adapter) discoverLatestThread(ctx context.Context) (int, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var result searchResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"tags":  "story,author_whoishiring",
			"query": "Ask HN: Who is hiring?",
		}).
		SetResult(&result).
		Get(a.cfg.SearchBaseURL + "/search_by_date")
	if err != nil {
		return 0, fmt.Errorf("searching hiring threads: %w", err)
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("hiring thread search returned HTTP %d", resp.StatusCode())
	}

	for _, hit := range result.Hits {
		id, err := strconv.Atoi(hit.ObjectID)
		if err != nil {
			continue
		}
		return id, nil
	}
	return 0, fmt.Errorf("no hiring threads found")
}

// fetchItem retrieves one HN item and returns both the raw body and the
// decoded item.
func (a *Adapter) fetchItem(ctx context.Context, id int) ([]byte, *item, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/item/%d.json", a.cfg.ItemBaseURL, id))
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, nil, fmt.Errorf("item API returned HTTP %d", resp.StatusCode())
	}

	body := resp.Body()
	var it item
	if err := json.Unmarshal(body, &it); err != nil {
		return nil, nil, fmt.Errorf("decoding item %d: %w", id, err)
	}
	return body, &it, nil
}
