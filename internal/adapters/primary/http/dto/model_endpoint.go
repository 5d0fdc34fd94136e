package dto

import (
	"time"

	"llm-engine-service/internal/core/domain"
)

type CreateModelEndpointRequest struct {
	Name                       string            `json:"name" binding:"required,max=63"`
	ModelName                  string            `json:"model_name" binding:"required"`
	CheckpointPath             string            `json:"checkpoint_path"`
	InferenceFrameworkImageTag string            `json:"inference_framework_image_tag"`
	NumShards                  int               `json:"num_shards" binding:"gte=0"`
	GPUs                       int               `json:"gpus" binding:"gte=0"`
	GPUType                    string            `json:"gpu_type"`
	MinWorkers                 *int              `json:"min_workers"`
	MaxWorkers                 *int              `json:"max_workers"`
	PublicInference            bool              `json:"public_inference"`
	Labels                     map[string]string `json:"labels"`
}

type CreateModelEndpointResponse struct {
	EndpointCreationTaskID string `json:"endpoint_creation_task_id"`
}

type ModelEndpointResponse struct {
	ID                         string            `json:"id"`
	Name                       string            `json:"name"`
	ModelName                  string            `json:"model_name"`
	Owner                      string            `json:"owner"`
	Source                     string            `json:"source"`
	Status                     string            `json:"status"`
	InferenceFramework         string            `json:"inference_framework"`
	InferenceFrameworkImageTag string            `json:"inference_framework_image_tag"`
	NumShards                  int               `json:"num_shards"`
	CheckpointPath             string            `json:"checkpoint_path,omitempty"`
	Spec                       EndpointSpec      `json:"spec"`
	Labels                     map[string]string `json:"labels"`
	Error                      string            `json:"error,omitempty"`
	CreatedAt                  string            `json:"created_at"`
	UpdatedAt                  string            `json:"updated_at"`
}

// EndpointSpec carries the serving shape of an endpoint
type EndpointSpec struct {
	GPUs            int    `json:"gpus"`
	GPUType         string `json:"gpu_type,omitempty"`
	MinWorkers      int    `json:"min_workers"`
	MaxWorkers      int    `json:"max_workers"`
	PublicInference bool   `json:"public_inference"`
	URL             string `json:"url,omitempty"`
}

type ListModelEndpointsResponse struct {
	ModelEndpoints []ModelEndpointResponse `json:"model_endpoints"`
	Total          int                     `json:"total"`
	PageSize       int                     `json:"page_size"`
	NextOffset     int                     `json:"next_offset"`
}

type DeleteModelEndpointResponse struct {
	Deleted bool `json:"deleted"`
}

type BaseModelResponse struct {
	Name                   string         `json:"name"`
	HuggingFaceRepo        string         `json:"hugging_face_repo"`
	FineTunable            bool           `json:"fine_tunable"`
	GPUs                   int            `json:"gpus"`
	GPUType                string         `json:"gpu_type,omitempty"`
	NumShards              int            `json:"num_shards"`
	DefaultHyperparameters map[string]any `json:"default_hyperparameters,omitempty"`
}

type ListBaseModelsResponse struct {
	Models []BaseModelResponse `json:"models"`
}

func ToModelEndpointResponse(e *domain.ModelEndpoint) ModelEndpointResponse {
	labels := e.Labels
	if labels == nil {
		labels = map[string]string{}
	}
	return ModelEndpointResponse{
		ID:                         e.ID,
		Name:                       e.Name,
		ModelName:                  e.ModelName,
		Owner:                      e.Owner,
		Source:                     e.Source,
		Status:                     string(e.Status),
		InferenceFramework:         e.InferenceFramework,
		InferenceFrameworkImageTag: e.FrameworkImageTag,
		NumShards:                  e.NumShards,
		CheckpointPath:             e.CheckpointPath,
		Spec: EndpointSpec{
			GPUs:            e.GPUs,
			GPUType:         e.GPUType,
			MinWorkers:      e.MinWorkers,
			MaxWorkers:      e.MaxWorkers,
			PublicInference: e.Public,
			URL:             e.URL,
		},
		Labels:    labels,
		Error:     e.LastError,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
	}
}

func ToBaseModelResponse(m *domain.BaseModel) BaseModelResponse {
	return BaseModelResponse{
		Name:                   m.Name,
		HuggingFaceRepo:        m.HuggingFaceRepo,
		FineTunable:            m.FineTunable,
		GPUs:                   m.GPUs,
		GPUType:                m.GPUType,
		NumShards:              m.NumShards,
		DefaultHyperparameters: m.DefaultHyperparameters,
	}
}
