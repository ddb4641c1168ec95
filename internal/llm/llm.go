package llm

import (
	"context"
	"errors"
)

// Client abstracts LLM providers. One Complete call is one billable request.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is a single-turn structured completion.
type Request struct {
	System string
	Prompt string
	// Schema, when set, asks the provider to enforce the reply shape.
	Schema *Schema
}

// Response carries the raw reply text and token usage.
type Response struct {
	Text     string
	Provider string
	Model    string
	Usage    Usage
}

// Usage reports tokens consumed by one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ErrNotConfigured is returned when no provider is configured.
var ErrNotConfigured = errors.New("llm provider not configured")

// Disabled rejects every request. Used when LLM_PROVIDER=none.
type Disabled struct{}

// Complete returns ErrNotConfigured.
func (Disabled) Complete(context.Context, Request) (Response, error) {
	return Response{}, ErrNotConfigured
}
