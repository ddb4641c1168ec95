package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"jobboard-backend/internal/extract"
	"jobboard-backend/internal/llm"
	"jobboard-backend/internal/shared/metrics"
	"jobboard-backend/internal/shared/telemetry"
	"jobboard-backend/internal/usage"
)

// Ledger records metered calls.
type Ledger interface {
	Record(ctx context.Context, entry usage.Entry) (usage.Ledger, error)
}

// Client scores resume text with one LLM call and meters the cost.
type Client struct {
	llm      llm.Client
	ledger   Ledger
	pricing  usage.Pricing
	validate *validator.Validate
	now      func() time.Time
}

// NewClient constructs a Client.
func NewClient(provider llm.Client, ledger Ledger, pricing usage.Pricing) *Client {
	return &Client{
		llm:      provider,
		ledger:   ledger,
		pricing:  pricing,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Analyze sends text to the scoring service exactly once. A successful call
// appends one ledger entry, including repeat analyses of the same resume.
func (c *Client) Analyze(ctx context.Context, ownerID, tempResumeID, text string) (Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return Outcome{}, fmt.Errorf("%w: empty text", extract.ErrEmptyContent)
	}
	metrics.IncAnalysisStarted()
	start := c.now()

	resp, err := c.llm.Complete(ctx, buildRequest(text))
	metrics.ObserveAnalysisDurationMs(float64(c.now().Sub(start).Milliseconds()))
	if err != nil {
		metrics.IncAnalysisFailed("external")
		return Outcome{}, fmt.Errorf("%w: %w", ErrExternalService, err)
	}

	result, fallback, err := parseReply(c.validate, resp.Text)
	if err != nil {
		metrics.IncAnalysisFailed("parse")
		telemetry.Warn("analysis.parse_failed", map[string]any{
			"temp_resume_id": tempResumeID,
			"user_id":        ownerID,
			"model":          resp.Model,
			"error":          err,
		})
		return Outcome{}, err
	}
	if fallback {
		metrics.IncAnalysisParseFallback()
		telemetry.Warn("analysis.parse_fallback", map[string]any{
			"temp_resume_id": tempResumeID,
			"user_id":        ownerID,
			"provider":       resp.Provider,
			"model":          resp.Model,
		})
	}

	u := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		Cost:         c.pricing.Cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}
	if u.TotalTokens < u.InputTokens+u.OutputTokens {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}

	if c.ledger != nil {
		if _, err := c.ledger.Record(ctx, usage.Entry{
			UserID:       ownerID,
			TempResumeID: tempResumeID,
			Provider:     resp.Provider,
			Model:        resp.Model,
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			TotalTokens:  u.TotalTokens,
			Cost:         u.Cost,
		}); err != nil {
			telemetry.Error("usage.record_failed", map[string]any{
				"temp_resume_id": tempResumeID,
				"user_id":        ownerID,
				"total_tokens":   u.TotalTokens,
				"cost":           u.Cost,
				"error":          err,
			})
		}
	}

	metrics.IncAnalysisCompleted()
	return Outcome{Result: result, Usage: u}, nil
}
