package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"github.com/indrayudh19/Job-Mapper/internal/logger"
	"github.com/indrayudh19/Job-Mapper/internal/prompts"
)

// ChatCompleter is the LLM client seam used by the extraction agent.
// Implementations call an OpenAI-compatible chat completions endpoint.
type ChatCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GetModel() string
}

// LLMClient calls an OpenAI-compatible chat completions API.
type LLMClient struct {
	client   *resty.Client
	model    string
	endpoint string
}

// LLMConfig holds configuration for the LLM client.
type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewLLMClient creates a new LLM client.
// Parameters:
//   - cfg: LLM configuration including provider, model, and API key.
//
// Returns:
//   - *LLMClient: initialized chat completions client.
func NewLLMClient(cfg *LLMConfig) *LLMClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	// Default to OpenAI compatible endpoint if not specified
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	endpoint := baseURL + "/chat/completions"

	return &LLMClient{
		client:   client,
		model:    cfg.Model,
		endpoint: endpoint,
	}
}

// GetModel returns the model name being used.
func (c *LLMClient) GetModel() string {
	return c.model
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends one system/user exchange and returns the raw completion text.
// Transport failures and 429/5xx responses wrap ErrTransientUpstream so
// callers can retry with backoff.
func (c *LLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   500,
		Temperature: 0,
	}

	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.endpoint)

	if err != nil {
		return "", fmt.Errorf("failed to call LLM API: %v: %w", err, domain.ErrTransientUpstream)
	}

	status := httpResp.StatusCode()
	if status < 200 || status >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", status)
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", status, resp.Error.Message)
		} else if len(httpResp.Body()) > 0 {
			errorMsg = fmt.Sprintf("HTTP %d: %s", status, string(httpResp.Body()))
		}
		if status == 429 || status >= 500 {
			return "", fmt.Errorf("LLM API returned error: %s: %w", errorMsg, domain.ErrTransientUpstream)
		}
		return "", fmt.Errorf("LLM API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("LLM API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM API (status: %d): %w", status, domain.ErrTransientUpstream)
	}

	return resp.Choices[0].Message.Content, nil
}

// ExtractionAgent turns raw listings into structured job records.
type ExtractionAgent struct {
	llm         ChatCompleter
	maxAttempts int
	backoff     time.Duration
	logger      *logger.Logger
}

// ExtractionConfig holds configuration for the extraction agent.
type ExtractionConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// NewExtractionAgent creates a new extraction agent.
func NewExtractionAgent(llm ChatCompleter, log *logger.Logger, cfg *ExtractionConfig) *ExtractionAgent {
	maxAttempts := 3
	backoff := time.Second
	if cfg != nil {
		if cfg.MaxAttempts > 0 {
			maxAttempts = cfg.MaxAttempts
		}
		if cfg.Backoff > 0 {
			backoff = cfg.Backoff
		}
	}
	return &ExtractionAgent{
		llm:         llm,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      log,
	}
}

func (a *ExtractionAgent) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return a.logger
}

// extractionResult is the JSON object the model must return.
type extractionResult struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
	Summary  string `json:"summary"`
	ApplyURL string `json:"apply_url"`
	Error    string `json:"error"`
	Reason   string `json:"reason"`
}

// permanentError is a non-retryable extraction failure carrying its
// persisted classification. It unwraps to ErrPermanentExtraction so callers
// can branch with errors.Is.
type permanentError struct {
	reason domain.FailureReason
	msg    string
}

func (e *permanentError) Error() string { return e.msg }
func (e *permanentError) Unwrap() error { return domain.ErrPermanentExtraction }

// RecordID derives the deterministic record identity from the source
// coordinates, so re-extracting the same listing overwrites in place.
func RecordID(sourceID, sourceKey string) string {
	sum := sha1.Sum([]byte(sourceID + "\x00" + sourceKey))
	return hex.EncodeToString(sum[:])
}

// Extract structures one raw listing into a job record. Transient upstream
// failures are retried with backoff up to the attempt cap; permanent
// failures wrap ErrPermanentExtraction and carry a FailureReason via
// ClassifyFailure.
func (a *ExtractionAgent) Extract(ctx context.Context, listing *domain.RawListing) (*domain.JobRecord, error) {
	userPrompt := prompts.ExtractionUserPrompt + string(listing.Payload)

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.backoff * time.Duration(attempt-1)):
			}
		}

		raw, err := a.llm.Complete(ctx, prompts.ExtractionSystemPrompt, userPrompt)
		if err != nil {
			lastErr = err
			if errors.Is(err, domain.ErrTransientUpstream) {
				a.log(ctx).WithFields(logger.Fields{
					"source_key": listing.SourceKey,
					"attempt":    attempt,
				}).WithError(err).Warn("LLM call failed, retrying")
				continue
			}
			return nil, &permanentError{
				reason: domain.FailureUpstreamToolFailure,
				msg:    fmt.Sprintf("upstream tool failure: %v", err),
			}
		}

		result, err := parseExtraction(raw)
		if err != nil {
			// The model sometimes emits broken JSON; one more sample is
			// usually enough.
			lastErr = fmt.Errorf("malformed extraction output: %w", err)
			a.log(ctx).WithFields(logger.Fields{
				"source_key": listing.SourceKey,
				"attempt":    attempt,
			}).WithError(err).Warn("Failed to parse extraction output, retrying")
			continue
		}

		if result.Error != "" {
			return nil, &permanentError{
				reason: domain.FailureAmbiguousContent,
				msg:    fmt.Sprintf("listing rejected (%s): %s", result.Error, result.Reason),
			}
		}
		if result.Title == "" || result.Company == "" {
			return nil, &permanentError{
				reason: domain.FailureAmbiguousContent,
				msg:    "missing required fields in extraction",
			}
		}

		now := time.Now()
		return &domain.JobRecord{
			ID:               RecordID(listing.SourceID, listing.SourceKey),
			SourceID:         listing.SourceID,
			SourceListingKey: listing.SourceKey,
			Title:            result.Title,
			Company:          result.Company,
			RawLocationText:  result.Location,
			Summary:          result.Summary,
			ApplyURL:         result.ApplyURL,
			ExtractedAt:      now,
		}, nil
	}

	if errors.Is(lastErr, domain.ErrTransientUpstream) {
		return nil, lastErr
	}
	return nil, &permanentError{
		reason: domain.FailureMalformedInput,
		msg:    lastErr.Error(),
	}
}

// ClassifyFailure maps an extraction error to its persisted failure reason.
// Classification travels on the error value itself, so log wording can
// change without reclassifying failures.
func ClassifyFailure(err error) domain.FailureReason {
	var perr *permanentError
	if errors.As(err, &perr) {
		return perr.reason
	}
	return domain.FailureUpstreamToolFailure
}

// parseExtraction decodes the model output, tolerating markdown code fences
// and surrounding prose.
func parseExtraction(raw string) (*extractionResult, error) {
	text := strings.TrimSpace(raw)

	// Strip markdown code fences if present
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx != -1 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	// Fall back to the outermost JSON object
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in output")
	}
	text = text[start : end+1]

	var result extractionResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &result, nil
}
