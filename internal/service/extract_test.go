package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"github.com/indrayudh19/Job-Mapper/internal/logger"
)

// fakeChat replays canned completions, one per call.
type fakeChat struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeChat) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	return f.responses[idx], nil
}

func (f *fakeChat) GetModel() string { return "fake-model" }

func testAgent(chat ChatCompleter) *ExtractionAgent {
	return NewExtractionAgent(chat, logger.New(nil), &ExtractionConfig{
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	})
}

func testListing() *domain.RawListing {
	return &domain.RawListing{
		SourceID:  "hnhiring",
		SourceKey: "12345",
		Payload:   []byte("Acme | Engineer | Bengaluru"),
		FetchedAt: time.Now(),
	}
}

func TestExtract_ParsesPlainJSON(t *testing.T) {
	chat := &fakeChat{responses: []string{
		`{"title":"Engineer","company":"Acme","location":"Bengaluru","summary":"Builds things.","apply_url":"https://acme.example/jobs/1"}`,
	}}
	agent := testAgent(chat)

	record, err := agent.Extract(context.Background(), testListing())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Title != "Engineer" || record.Company != "Acme" {
		t.Errorf("unexpected record: %+v", record)
	}
	if record.RawLocationText != "Bengaluru" {
		t.Errorf("expected location %q, got %q", "Bengaluru", record.RawLocationText)
	}
	if record.SourceID != "hnhiring" || record.SourceListingKey != "12345" {
		t.Errorf("source coordinates not carried: %+v", record)
	}
}

func TestExtract_ParsesFencedJSON(t *testing.T) {
	chat := &fakeChat{responses: []string{
		"```json\n{\"title\":\"Engineer\",\"company\":\"Acme\",\"location\":\"\",\"summary\":\"x\"}\n```",
	}}
	agent := testAgent(chat)

	record, err := agent.Extract(context.Background(), testListing())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Title != "Engineer" {
		t.Errorf("expected title Engineer, got %q", record.Title)
	}
}

func TestExtract_DeterministicRecordID(t *testing.T) {
	resp := `{"title":"Engineer","company":"Acme","location":"Pune","summary":"x"}`
	agent1 := testAgent(&fakeChat{responses: []string{resp}})
	agent2 := testAgent(&fakeChat{responses: []string{resp}})

	r1, err := agent1.Extract(context.Background(), testListing())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := agent2.Extract(context.Background(), testListing())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r1.ID != r2.ID {
		t.Errorf("record IDs differ for same listing: %q vs %q", r1.ID, r2.ID)
	}
	if r1.ID != RecordID("hnhiring", "12345") {
		t.Errorf("record ID not derived from source coordinates")
	}
}

func TestExtract_RejectsNonPosting(t *testing.T) {
	chat := &fakeChat{responses: []string{
		`{"error":"not_a_job_posting","reason":"reply to an existing post"}`,
	}}
	agent := testAgent(chat)

	_, err := agent.Extract(context.Background(), testListing())
	if !errors.Is(err, domain.ErrPermanentExtraction) {
		t.Fatalf("expected permanent extraction error, got %v", err)
	}
	if reason := ClassifyFailure(err); reason != domain.FailureAmbiguousContent {
		t.Errorf("expected ambiguous_content, got %q", reason)
	}
	if chat.calls != 1 {
		t.Errorf("permanent rejection must not be retried, got %d calls", chat.calls)
	}
}

func TestExtract_RetriesMalformedThenSucceeds(t *testing.T) {
	chat := &fakeChat{responses: []string{
		"sorry, I cannot do that",
		`{"title":"Engineer","company":"Acme","location":"Pune","summary":"x"}`,
	}}
	agent := testAgent(chat)

	record, err := agent.Extract(context.Background(), testListing())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Title != "Engineer" {
		t.Errorf("unexpected record: %+v", record)
	}
	if chat.calls != 2 {
		t.Errorf("expected 2 calls, got %d", chat.calls)
	}
}

func TestExtract_MalformedExhaustsToPermanent(t *testing.T) {
	chat := &fakeChat{responses: []string{"not json at all"}}
	agent := testAgent(chat)

	_, err := agent.Extract(context.Background(), testListing())
	if !errors.Is(err, domain.ErrPermanentExtraction) {
		t.Fatalf("expected permanent extraction error, got %v", err)
	}
	if reason := ClassifyFailure(err); reason != domain.FailureMalformedInput {
		t.Errorf("expected malformed_input, got %q", reason)
	}
	if chat.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", chat.calls)
	}
}

func TestExtract_TransientExhausted(t *testing.T) {
	transient := fmt.Errorf("HTTP 503: %w", domain.ErrTransientUpstream)
	chat := &fakeChat{
		responses: []string{"", "", ""},
		errs:      []error{transient, transient, transient},
	}
	agent := testAgent(chat)

	_, err := agent.Extract(context.Background(), testListing())
	if !errors.Is(err, domain.ErrTransientUpstream) {
		t.Fatalf("expected transient error after exhausting retries, got %v", err)
	}
	if chat.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", chat.calls)
	}
}

func TestExtract_MissingRequiredFields(t *testing.T) {
	chat := &fakeChat{responses: []string{
		`{"title":"","company":"Acme","location":"Pune","summary":"x"}`,
	}}
	agent := testAgent(chat)

	_, err := agent.Extract(context.Background(), testListing())
	if !errors.Is(err, domain.ErrPermanentExtraction) {
		t.Fatalf("expected permanent extraction error, got %v", err)
	}
}

func TestClassifyFailure_TravelsOnTheErrorValue(t *testing.T) {
	chat := &fakeChat{responses: []string{
		`{"error":"not_a_job_posting","reason":"event announcement"}`,
	}}
	agent := testAgent(chat)

	_, err := agent.Extract(context.Background(), testListing())
	if err == nil {
		t.Fatal("expected extraction error")
	}

	// Wrapping with arbitrary context must not change the classification
	wrapped := fmt.Errorf("listing 12345: %w", err)
	if reason := ClassifyFailure(wrapped); reason != domain.FailureAmbiguousContent {
		t.Errorf("expected ambiguous_content through wrapping, got %q", reason)
	}
	if reason := ClassifyFailure(errors.New("malformed something unrelated")); reason != domain.FailureUpstreamToolFailure {
		t.Errorf("unclassified errors must default to upstream_tool_failure, got %q", reason)
	}
}

func TestParseExtraction_SurroundingProse(t *testing.T) {
	raw := `Here is the result:
{"title":"Engineer","company":"Acme","location":"Pune","summary":"x"}
Hope that helps!`

	result, err := parseExtraction(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Title != "Engineer" || result.Company != "Acme" {
		t.Errorf("unexpected result: %+v", result)
	}
}
