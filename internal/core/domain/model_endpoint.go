package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Value Objects
// ============================================================================

// ModelEndpointStatus represents the state of a deployed LLM
type ModelEndpointStatus string

const (
	EndpointStatusReady            ModelEndpointStatus = "READY"
	EndpointStatusUpdatePending    ModelEndpointStatus = "UPDATE_PENDING"
	EndpointStatusUpdateInProgress ModelEndpointStatus = "UPDATE_IN_PROGRESS"
	EndpointStatusUpdateFailed     ModelEndpointStatus = "UPDATE_FAILED"
	EndpointStatusDeleteInProgress ModelEndpointStatus = "DELETE_IN_PROGRESS"
)

// IsValid checks if the status is valid
func (s ModelEndpointStatus) IsValid() bool {
	switch s {
	case EndpointStatusReady, EndpointStatusUpdatePending, EndpointStatusUpdateInProgress,
		EndpointStatusUpdateFailed, EndpointStatusDeleteInProgress:
		return true
	}
	return false
}

const (
	SourceHuggingFace                = "hugging_face"
	FrameworkTextGenerationInference = "text_generation_inference"
	DefaultFrameworkImageTag         = "1.0.3"
)

var endpointNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9.]*[a-z0-9])?$`)

// ValidateEndpointName checks a model endpoint name. Fine-tuned model names
// contain dots, so the K8s resource is named after the endpoint ID instead.
func ValidateEndpointName(name string) error {
	if name == "" || len(name) > 63 || !endpointNamePattern.MatchString(name) {
		return ErrInvalidModelEndpointName
	}
	return nil
}

// ============================================================================
// Entities
// ============================================================================

// ModelEndpoint represents a model that can be queried by name for inference
type ModelEndpoint struct {
	ID                 string              `json:"id"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Name               string              `json:"name"`
	Owner              string              `json:"owner"`
	ModelName          string              `json:"model_name"`
	Source             string              `json:"source"`
	InferenceFramework string              `json:"inference_framework"`
	FrameworkImageTag  string              `json:"inference_framework_image_tag"`
	CheckpointPath     string              `json:"checkpoint_path,omitempty"`
	NumShards          int                 `json:"num_shards"`
	GPUs               int                 `json:"gpus"`
	GPUType            string              `json:"gpu_type,omitempty"`
	MinWorkers         int                 `json:"min_workers"`
	MaxWorkers         int                 `json:"max_workers"`
	Public             bool                `json:"public_inference"`
	Status             ModelEndpointStatus `json:"status"`
	URL                string              `json:"url,omitempty"`
	ExternalID         string              `json:"external_id,omitempty"` // K8s resource UID
	LastError          string              `json:"last_error,omitempty"`
	Labels             map[string]string   `json:"labels"`
	FineTuneID         string              `json:"fine_tune_id,omitempty"`
}

// NewModelEndpoint creates a new ModelEndpoint with validation
func NewModelEndpoint(owner, name, modelName string) (*ModelEndpoint, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	if err := ValidateEndpointName(name); err != nil {
		return nil, err
	}
	if modelName == "" {
		return nil, ErrInvalidBaseModel
	}

	now := time.Now()
	return &ModelEndpoint{
		ID:                 "end-" + uuid.New().String(),
		CreatedAt:          now,
		UpdatedAt:          now,
		Name:               name,
		Owner:              owner,
		ModelName:          modelName,
		Source:             SourceHuggingFace,
		InferenceFramework: FrameworkTextGenerationInference,
		FrameworkImageTag:  DefaultFrameworkImageTag,
		NumShards:          1,
		GPUs:               1,
		MinWorkers:         1,
		MaxWorkers:         1,
		Status:             EndpointStatusUpdatePending,
		Labels:             make(map[string]string),
	}, nil
}

// ValidateScaling checks the worker bounds
func (e *ModelEndpoint) ValidateScaling() error {
	if e.MinWorkers < 0 || e.MaxWorkers < 1 || e.MinWorkers > e.MaxWorkers {
		return ErrInvalidWorkerCount
	}
	return nil
}

// MarkDeploying records that the serving resource was submitted
func (e *ModelEndpoint) MarkDeploying(externalID string) {
	e.Status = EndpointStatusUpdateInProgress
	e.ExternalID = externalID
	e.LastError = ""
	e.UpdatedAt = time.Now()
}

// MarkReady updates status with the serving URL
func (e *ModelEndpoint) MarkReady(url string) {
	e.Status = EndpointStatusReady
	e.URL = url
	e.LastError = ""
	e.UpdatedAt = time.Now()
}

// MarkFailed records deployment failure
func (e *ModelEndpoint) MarkFailed(msg string) {
	e.Status = EndpointStatusUpdateFailed
	e.LastError = msg
	e.UpdatedAt = time.Now()
}

// MarkDeleting flags the endpoint for removal
func (e *ModelEndpoint) MarkDeleting() {
	e.Status = EndpointStatusDeleteInProgress
	e.UpdatedAt = time.Now()
}

// IsReady returns true if the endpoint can serve requests
func (e *ModelEndpoint) IsReady() bool {
	return e.Status == EndpointStatusReady && e.URL != ""
}

// NeedsSync returns true while a deployment is still settling. A failed
// endpoint that still has a deployment keeps syncing since the serving layer
// may recover it.
func (e *ModelEndpoint) NeedsSync() bool {
	switch e.Status {
	case EndpointStatusUpdatePending, EndpointStatusUpdateInProgress:
		return true
	case EndpointStatusUpdateFailed:
		return e.ExternalID != ""
	}
	return false
}

// CanBeModifiedBy reports whether owner may update or delete the endpoint
func (e *ModelEndpoint) CanBeModifiedBy(owner string) bool {
	return e.Owner == owner
}
