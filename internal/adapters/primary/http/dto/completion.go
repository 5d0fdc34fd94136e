package dto

import "llm-engine-service/internal/core/domain"

type CompletionRequest struct {
	Prompt        string   `json:"prompt" binding:"required"`
	MaxNewTokens  int      `json:"max_new_tokens" binding:"required"`
	Temperature   float64  `json:"temperature"`
	StopSequences []string `json:"stop_sequences"`
}

func (r CompletionRequest) ToDomain() domain.CompletionRequest {
	return domain.CompletionRequest{
		Prompt:        r.Prompt,
		MaxNewTokens:  r.MaxNewTokens,
		Temperature:   r.Temperature,
		StopSequences: r.StopSequences,
	}
}

type CompletionSyncResponse struct {
	RequestID string                  `json:"request_id"`
	Output    domain.CompletionOutput `json:"output"`
}

type CompletionStreamResponse struct {
	RequestID string                        `json:"request_id"`
	Output    *domain.CompletionStreamOutput `json:"output,omitempty"`
	Error     string                        `json:"error,omitempty"`
}
