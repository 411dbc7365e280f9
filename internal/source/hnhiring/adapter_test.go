package hnhiring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

type fakeHN struct {
	threadID int
	kids     []int
	items    map[int]map[string]interface{}
	broken   map[int]bool
}

func (f *fakeHN) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/search_by_date", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"hits": []map[string]interface{}{
				{"objectID": strconv.Itoa(f.threadID), "title": "Ask HN: Who is hiring? (August 2026)"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/item/"), ".json")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if f.broken[id] {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if id == f.threadID {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":   f.threadID,
				"type": "story",
				"kids": f.kids,
			})
			return
		}
		it, ok := f.items[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(it)
	})

	return mux
}

func comment(id int, text string) map[string]interface{} {
	return map[string]interface{}{
		"id":   id,
		"type": "comment",
		"text": text,
		"by":   "poster",
	}
}

func newTestAdapter(serverURL string, threadID int) *Adapter {
	return NewAdapter(Config{
		SearchBaseURL: serverURL,
		ItemBaseURL:   serverURL,
		ThreadID:      threadID,
		RatePerSec:    1000,
	})
}

func TestFetchBatch_ReturnsThreadComments(t *testing.T) {
	hn := &fakeHN{
		threadID: 100,
		kids:     []int{101, 102},
		items: map[int]map[string]interface{}{
			101: comment(101, "Acme | Engineer | Bengaluru"),
			102: comment(102, "Beta | Designer | Pune"),
		},
	}
	server := httptest.NewServer(hn.handler())
	defer server.Close()

	adapter := newTestAdapter(server.URL, 100)
	listings, next, err := adapter.FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if next != "" {
		t.Errorf("expected exhausted cursor, got %q", next)
	}
	if listings[0].SourceID != SourceID {
		t.Errorf("expected source %q, got %q", SourceID, listings[0].SourceID)
	}
	if listings[0].SourceKey != "101" {
		t.Errorf("expected source key 101, got %q", listings[0].SourceKey)
	}
	if !strings.Contains(string(listings[0].Payload), "Acme") {
		t.Errorf("payload does not carry the comment body: %s", listings[0].Payload)
	}
}

func TestFetchBatch_SkipsDeadDeletedAndEmpty(t *testing.T) {
	hn := &fakeHN{
		threadID: 100,
		kids:     []int{101, 102, 103, 104},
		items: map[int]map[string]interface{}{
			101: comment(101, "Acme | Engineer | Bengaluru"),
			102: {"id": 102, "type": "comment", "deleted": true},
			103: {"id": 103, "type": "comment", "text": "flagged", "dead": true},
			104: {"id": 104, "type": "comment", "text": ""},
		},
	}
	server := httptest.NewServer(hn.handler())
	defer server.Close()

	adapter := newTestAdapter(server.URL, 100)
	listings, _, err := adapter.FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(listings) != 1 {
		t.Fatalf("expected 1 usable listing, got %d", len(listings))
	}
	if listings[0].SourceKey != "101" {
		t.Errorf("expected listing 101, got %q", listings[0].SourceKey)
	}
}

func TestFetchBatch_CursorPagination(t *testing.T) {
	items := make(map[int]map[string]interface{})
	kids := make([]int, 5)
	for i := 0; i < 5; i++ {
		id := 101 + i
		kids[i] = id
		items[id] = comment(id, fmt.Sprintf("Company %d | Role | City", i))
	}
	hn := &fakeHN{threadID: 100, kids: kids, items: items}
	server := httptest.NewServer(hn.handler())
	defer server.Close()

	adapter := newTestAdapter(server.URL, 100)

	first, cursor, err := adapter.FetchBatch(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 || cursor != "2" {
		t.Fatalf("expected 2 listings and cursor 2, got %d and %q", len(first), cursor)
	}

	second, cursor, err := adapter.FetchBatch(context.Background(), cursor, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 2 || cursor != "4" {
		t.Fatalf("expected 2 listings and cursor 4, got %d and %q", len(second), cursor)
	}
	if second[0].SourceKey == first[0].SourceKey {
		t.Error("pages overlap")
	}

	third, cursor, err := adapter.FetchBatch(context.Background(), cursor, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(third) != 1 || cursor != "" {
		t.Fatalf("expected final page of 1 and empty cursor, got %d and %q", len(third), cursor)
	}
}

func TestFetchBatch_PartialFailureReturnsFetchedItems(t *testing.T) {
	hn := &fakeHN{
		threadID: 100,
		kids:     []int{101, 102, 103},
		items: map[int]map[string]interface{}{
			101: comment(101, "Acme | Engineer | Bengaluru"),
			103: comment(103, "Gamma | Analyst | Delhi"),
		},
		broken: map[int]bool{102: true},
	}
	server := httptest.NewServer(hn.handler())
	defer server.Close()

	adapter := newTestAdapter(server.URL, 100)
	listings, _, err := adapter.FetchBatch(context.Background(), "", 10)
	if err == nil {
		t.Fatal("expected error for broken item")
	}
	if len(listings) != 1 {
		t.Fatalf("expected items fetched before the failure, got %d", len(listings))
	}
	if listings[0].SourceKey != "101" {
		t.Errorf("expected listing 101, got %q", listings[0].SourceKey)
	}
}

func TestFetchBatch_DiscoversLatestThread(t *testing.T) {
	hn := &fakeHN{
		threadID: 4242,
		kids:     []int{4300},
		items: map[int]map[string]interface{}{
			4300: comment(4300, "Acme | Engineer | Mumbai"),
		},
	}
	server := httptest.NewServer(hn.handler())
	defer server.Close()

	// ThreadID 0 forces Algolia discovery
	adapter := newTestAdapter(server.URL, 0)
	listings, _, err := adapter.FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing from discovered thread, got %d", len(listings))
	}
}

func TestFetchBatch_FreshPullSeesNewComments(t *testing.T) {
	hn := &fakeHN{
		threadID: 100,
		kids:     []int{101},
		items: map[int]map[string]interface{}{
			101: comment(101, "Acme | Engineer | Bengaluru"),
		},
	}
	server := httptest.NewServer(hn.handler())
	defer server.Close()

	adapter := newTestAdapter(server.URL, 100)
	first, _, err := adapter.FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 listing on first pull, got %d", len(first))
	}

	// A new comment arrives between refresh cycles
	hn.kids = append(hn.kids, 102)
	hn.items[102] = comment(102, "Beta | Designer | Pune")

	second, _, err := adapter.FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("second pull must see the new comment, got %d listings", len(second))
	}
}

func TestFetchBatch_InvalidCursor(t *testing.T) {
	hn := &fakeHN{
		threadID: 100,
		kids:     []int{101},
		items:    map[int]map[string]interface{}{101: comment(101, "Acme | Engineer | Pune")},
	}
	server := httptest.NewServer(hn.handler())
	defer server.Close()

	adapter := newTestAdapter(server.URL, 100)
	if _, _, err := adapter.FetchBatch(context.Background(), "not-a-number", 10); err == nil {
		t.Fatal("expected error for malformed cursor")
	}
}
