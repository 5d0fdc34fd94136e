package domain

import "errors"

// ============================================================================
// Auth Errors
// ============================================================================

var (
	ErrUnauthenticated = errors.New("missing or invalid API key")
	ErrMissingOwner    = errors.New("owner is required")
)

// ============================================================================
// Fine-Tune Errors
// ============================================================================

// Not found errors
var (
	ErrFineTuneNotFound  = errors.New("fine-tune not found")
	ErrBaseModelNotFound = errors.New("base model not found")
)

// Validation errors
var (
	ErrInvalidBaseModel      = errors.New("base model is required")
	ErrMissingTrainingFile   = errors.New("training file is required")
	ErrInvalidFileLocation   = errors.New("invalid file location")
	ErrInvalidDataset        = errors.New("invalid dataset")
	ErrInvalidSuffix         = errors.New("suffix must be 1-28 characters of lowercase letters, digits or hyphens")
	ErrInvalidHyperparameter = errors.New("invalid hyperparameter")
)

// Business rule errors
var (
	ErrBaseModelNotFineTunable = errors.New("base model does not support fine-tuning")
	ErrInvalidStatusTransition = errors.New("invalid fine-tune status transition")
	ErrFineTuneTerminal        = errors.New("fine-tune has already finished")
	ErrFineTuneStatusConflict  = errors.New("fine-tune status changed concurrently")
)

// ============================================================================
// Model Endpoint Errors
// ============================================================================

var (
	ErrModelEndpointNotFound     = errors.New("model endpoint not found")
	ErrModelEndpointNameConflict = errors.New("model endpoint with this name already exists")
	ErrInvalidModelEndpointName  = errors.New("model endpoint name must be at most 63 lowercase letters, digits, hyphens or dots")
	ErrInvalidWorkerCount        = errors.New("min_workers must be >= 0 and <= max_workers")
	ErrModelEndpointNotReady     = errors.New("model endpoint is not ready")
	ErrNotEndpointOwner          = errors.New("only the owner can modify this model endpoint")
)

// ============================================================================
// Completion Errors
// ============================================================================

var (
	ErrInvalidPrompt        = errors.New("prompt is required")
	ErrInvalidMaxNewTokens  = errors.New("max_new_tokens must be between 1 and 4096")
	ErrInvalidTemperature   = errors.New("temperature must be between 0 and 1")
	ErrMissingEndpointName  = errors.New("model_endpoint_name is required")
	ErrInferenceUnavailable = errors.New("inference request failed")
)

// ============================================================================
// Infrastructure Errors
// ============================================================================

var (
	ErrQueueUnavailable        = errors.New("fine-tune queue is unavailable")
	ErrOrchestratorUnavailable = errors.New("orchestrator is not available")
)
