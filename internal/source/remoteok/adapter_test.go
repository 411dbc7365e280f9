package remoteok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func boardHandler(t *testing.T, board []interface{}) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(board); err != nil {
			t.Errorf("failed to encode board: %v", err)
		}
	})
}

func testBoard() []interface{} {
	return []interface{}{
		map[string]interface{}{"legal": "API terms apply"},
		map[string]interface{}{"id": "1", "slug": "acme-engineer", "position": "Engineer", "company": "Acme"},
		map[string]interface{}{"id": "2", "slug": "beta-designer", "position": "Designer", "company": "Beta"},
		map[string]interface{}{"id": "3", "position": "Analyst", "company": "Gamma"},
	}
}

func newTestAdapter(serverURL string) *Adapter {
	return NewAdapter(Config{BaseURL: serverURL, RatePerSec: 1000})
}

func TestFetchBatch_SkipsLeadingMetadata(t *testing.T) {
	server := httptest.NewServer(boardHandler(t, testBoard()))
	defer server.Close()

	adapter := newTestAdapter(server.URL)
	listings, next, err := adapter.FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(listings) != 3 {
		t.Fatalf("expected 3 listings after dropping metadata, got %d", len(listings))
	}
	if next != "" {
		t.Errorf("expected exhausted cursor, got %q", next)
	}
	if listings[0].SourceKey != "acme-engineer" {
		t.Errorf("expected slug key, got %q", listings[0].SourceKey)
	}
}

func TestFetchBatch_KeyFallsBackToID(t *testing.T) {
	server := httptest.NewServer(boardHandler(t, testBoard()))
	defer server.Close()

	adapter := newTestAdapter(server.URL)
	listings, _, err := adapter.FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if listings[2].SourceKey != "3" {
		t.Errorf("expected id fallback key 3, got %q", listings[2].SourceKey)
	}
}

func TestFetchBatch_CursorPagination(t *testing.T) {
	server := httptest.NewServer(boardHandler(t, testBoard()))
	defer server.Close()

	adapter := newTestAdapter(server.URL)

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
	if len(second) != 1 || cursor != "" {
		t.Fatalf("expected final page of 1 and empty cursor, got %d and %q", len(second), cursor)
	}
}

func TestFetchBatch_NumericIDKey(t *testing.T) {
	board := []interface{}{
		map[string]interface{}{"legal": "API terms apply"},
		map[string]interface{}{"id": 12345, "position": "Engineer", "company": "Acme"},
	}
	server := httptest.NewServer(boardHandler(t, board))
	defer server.Close()

	adapter := newTestAdapter(server.URL)
	listings, _, err := adapter.FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
	if listings[0].SourceKey != "12345" {
		t.Errorf("expected numeric id key 12345, got %q", listings[0].SourceKey)
	}
}

func TestFetchBatch_FreshPullSeesNewListings(t *testing.T) {
	board := testBoard()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(board)
	}))
	defer server.Close()

	adapter := newTestAdapter(server.URL)
	first, _, err := adapter.FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 listings on first pull, got %d", len(first))
	}

	// A new listing appears between refresh cycles
	board = append(board, map[string]interface{}{"id": "4", "slug": "delta-sre", "position": "SRE", "company": "Delta"})

	second, _, err := adapter.FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 4 {
		t.Fatalf("second pull must see the new listing, got %d", len(second))
	}
}

func TestFetchBatch_UpstreamErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := newTestAdapter(server.URL)
	if _, _, err := adapter.FetchBatch(context.Background(), "", 10); err == nil {
		t.Fatal("expected error for upstream failure")
	}
}
