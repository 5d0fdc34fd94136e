package domain

import (
	"context"
	"strings"
)

const MaxNewTokensLimit = 4096

// CompletionRequest is a single prompt sent to a model endpoint
type CompletionRequest struct {
	Prompt        string   `json:"prompt"`
	MaxNewTokens  int      `json:"max_new_tokens"`
	Temperature   float64  `json:"temperature"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// Validate checks the request bounds
func (r CompletionRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrInvalidPrompt
	}
	if r.MaxNewTokens < 1 || r.MaxNewTokens > MaxNewTokensLimit {
		return ErrInvalidMaxNewTokens
	}
	if r.Temperature < 0 || r.Temperature > 1 {
		return ErrInvalidTemperature
	}
	return nil
}

// Greedy returns true when sampling is disabled
func (r CompletionRequest) Greedy() bool {
	return r.Temperature == 0
}

// CompletionOutput is the generated text of a synchronous completion
type CompletionOutput struct {
	Text                string `json:"text"`
	NumCompletionTokens int    `json:"num_completion_tokens"`
}

// CompletionResult wraps an output with its request ID
type CompletionResult struct {
	RequestID string           `json:"request_id"`
	Output    CompletionOutput `json:"output"`
}

// CompletionStreamOutput is one token of a streaming completion
type CompletionStreamOutput struct {
	Text                string `json:"text"`
	Finished            bool   `json:"finished"`
	NumCompletionTokens int    `json:"num_completion_tokens,omitempty"`
}

// CompletionStreamResult wraps a streamed token with its request ID
type CompletionStreamResult struct {
	RequestID string                 `json:"request_id"`
	Output    CompletionStreamOutput `json:"output"`
}

type requestIDKey struct{}

// WithRequestID tags ctx with the ID of the API request being served
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request ID carried by ctx, or ""
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
