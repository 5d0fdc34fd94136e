package dto

import (
	"time"

	"llm-engine-service/internal/core/domain"
)

type CreateFineTuneRequest struct {
	Model           string         `json:"model" binding:"required"`
	TrainingFile    string         `json:"training_file" binding:"required"`
	ValidationFile  string         `json:"validation_file"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	Suffix          string         `json:"suffix"`
}

type CreateFineTuneResponse struct {
	FineTuneID string `json:"fine_tune_id"`
}

type FineTuneResponse struct {
	FineTuneID      string         `json:"fine_tune_id"`
	Status          string         `json:"status"`
	Model           string         `json:"model"`
	FineTunedModel  string         `json:"fine_tuned_model,omitempty"`
	TrainingFile    string         `json:"training_file"`
	ValidationFile  string         `json:"validation_file,omitempty"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	Suffix          string         `json:"suffix,omitempty"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
	CompletedAt     *string        `json:"completed_at,omitempty"`
}

type ListFineTunesResponse struct {
	Jobs       []FineTuneResponse `json:"jobs"`
	Total      int                `json:"total"`
	PageSize   int                `json:"page_size"`
	NextOffset int                `json:"next_offset"`
}

type CancelFineTuneResponse struct {
	Success bool `json:"success"`
}

func ToFineTuneResponse(ft *domain.FineTune) FineTuneResponse {
	resp := FineTuneResponse{
		FineTuneID:      ft.ID,
		Status:          string(ft.Status),
		Model:           ft.BaseModel,
		FineTunedModel:  ft.FineTunedModel,
		TrainingFile:    ft.TrainingFile,
		ValidationFile:  ft.ValidationFile,
		Hyperparameters: ft.Hyperparameters,
		Suffix:          ft.Suffix,
		CreatedAt:       ft.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       ft.UpdatedAt.Format(time.RFC3339),
	}
	// Launch errors are retried, only surface them once the job failed
	if ft.Status == domain.FineTuneStatusFailure {
		resp.Error = ft.LastError
	}
	if ft.CompletedAt != nil {
		completed := ft.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}
