package llmengine

import "fmt"

type CreateFineTuneRequest struct {
	Model           string         `json:"model"`
	TrainingFile    string         `json:"training_file"`
	ValidationFile  string         `json:"validation_file,omitempty"`
	Hyperparameters map[string]any `json:"hyperparameters,omitempty"`
	Suffix          string         `json:"suffix,omitempty"`
}

type CreateFineTuneResponse struct {
	FineTuneID string `json:"fine_tune_id"`
}

type FineTune struct {
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
	CompletedAt     string         `json:"completed_at,omitempty"`
}

type ListFineTunesResponse struct {
	Jobs       []FineTune `json:"jobs"`
	Total      int        `json:"total"`
	PageSize   int        `json:"page_size"`
	NextOffset int        `json:"next_offset"`
}

type CancelFineTuneResponse struct {
	Success bool `json:"success"`
}

type ModelSpec struct {
	GPUs            int    `json:"gpus"`
	GPUType         string `json:"gpu_type,omitempty"`
	MinWorkers      int    `json:"min_workers"`
	MaxWorkers      int    `json:"max_workers"`
	PublicInference bool   `json:"public_inference"`
	URL             string `json:"url,omitempty"`
}

// Model is a deployed model endpoint
type Model struct {
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
	Spec                       ModelSpec         `json:"spec"`
	Labels                     map[string]string `json:"labels"`
	Error                      string            `json:"error,omitempty"`
	CreatedAt                  string            `json:"created_at"`
	UpdatedAt                  string            `json:"updated_at"`
}

type ListModelsResponse struct {
	ModelEndpoints []Model `json:"model_endpoints"`
	Total          int     `json:"total"`
	PageSize       int     `json:"page_size"`
	NextOffset     int     `json:"next_offset"`
}

type CreateModelRequest struct {
	Name                       string            `json:"name"`
	ModelName                  string            `json:"model_name"`
	CheckpointPath             string            `json:"checkpoint_path,omitempty"`
	InferenceFrameworkImageTag string            `json:"inference_framework_image_tag,omitempty"`
	NumShards                  int               `json:"num_shards,omitempty"`
	GPUs                       int               `json:"gpus,omitempty"`
	GPUType                    string            `json:"gpu_type,omitempty"`
	MinWorkers                 *int              `json:"min_workers,omitempty"`
	MaxWorkers                 *int              `json:"max_workers,omitempty"`
	PublicInference            bool              `json:"public_inference,omitempty"`
	Labels                     map[string]string `json:"labels,omitempty"`
}

type CreateModelResponse struct {
	EndpointCreationTaskID string `json:"endpoint_creation_task_id"`
}

type DeleteModelResponse struct {
	Deleted bool `json:"deleted"`
}

type BaseModel struct {
	Name                   string         `json:"name"`
	HuggingFaceRepo        string         `json:"hugging_face_repo"`
	FineTunable            bool           `json:"fine_tunable"`
	GPUs                   int            `json:"gpus"`
	GPUType                string         `json:"gpu_type,omitempty"`
	NumShards              int            `json:"num_shards"`
	DefaultHyperparameters map[string]any `json:"default_hyperparameters,omitempty"`
}

type ListBaseModelsResponse struct {
	Models []BaseModel `json:"models"`
}

type CompletionRequest struct {
	Prompt        string   `json:"prompt"`
	MaxNewTokens  int      `json:"max_new_tokens"`
	Temperature   float64  `json:"temperature"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

type CompletionOutput struct {
	Text                string `json:"text"`
	NumCompletionTokens int    `json:"num_completion_tokens"`
}

type Completion struct {
	RequestID string           `json:"request_id"`
	Output    CompletionOutput `json:"output"`
}

type CompletionStreamOutput struct {
	Text                string `json:"text"`
	Finished            bool   `json:"finished"`
	NumCompletionTokens int    `json:"num_completion_tokens,omitempty"`
}

type CompletionStreamResponse struct {
	RequestID string                  `json:"request_id"`
	Output    *CompletionStreamOutput `json:"output,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// APIError is returned for every non-2xx response
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm engine: %d %s", e.StatusCode, e.Message)
}
