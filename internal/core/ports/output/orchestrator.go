package ports

import (
	"context"

	"llm-engine-service/internal/core/domain"
)

// TrainingJobState is the coarse state of a training Job in the cluster
type TrainingJobState string

const (
	TrainingJobActive    TrainingJobState = "ACTIVE"
	TrainingJobSucceeded TrainingJobState = "SUCCEEDED"
	TrainingJobFailed    TrainingJobState = "FAILED"
	TrainingJobMissing   TrainingJobState = "MISSING"
)

// TrainingJobSpec carries what the training container needs
type TrainingJobSpec struct {
	FineTune       *domain.FineTune
	BaseModel      *domain.BaseModel
	OutputLocation string
}

// TrainingJobStatus represents the status of a training Job
type TrainingJobStatus struct {
	State   TrainingJobState
	Message string
}

// TrainingOrchestrator defines the contract for running fine-tune jobs on K8s
type TrainingOrchestrator interface {
	// Launch creates the training Job and returns its name
	Launch(ctx context.Context, spec TrainingJobSpec) (string, error)

	// GetStatus retrieves the current Job status
	GetStatus(ctx context.Context, jobName string) (*TrainingJobStatus, error)

	// Cancel deletes the Job and its pods
	Cancel(ctx context.Context, jobName string) error

	// IsAvailable checks if K8s integration is enabled and configured
	IsAvailable() bool
}

// ServingDeployment represents the result of submitting a serving resource
type ServingDeployment struct {
	ExternalID string // K8s resource UID
	URL        string // Inference endpoint URL (if ready)
}

// ServingStatus represents the status of a KServe InferenceService
type ServingStatus struct {
	URL   string
	Ready bool
	Error string
}

// ServingOrchestrator defines the contract for KServe operations
type ServingOrchestrator interface {
	// Deploy creates a KServe InferenceService for the endpoint
	Deploy(ctx context.Context, endpoint *domain.ModelEndpoint, model *domain.BaseModel) (*ServingDeployment, error)

	// Undeploy deletes the InferenceService
	Undeploy(ctx context.Context, endpoint *domain.ModelEndpoint) error

	// GetStatus retrieves current deployment status
	GetStatus(ctx context.Context, endpoint *domain.ModelEndpoint) (*ServingStatus, error)

	// IsAvailable checks if KServe integration is enabled and configured
	IsAvailable() bool
}
