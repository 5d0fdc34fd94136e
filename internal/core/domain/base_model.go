package domain

import (
	"fmt"
	"sort"
)

// BaseModel is a catalog entry for an open-source LLM that can be served and,
// when FineTunable, used as the starting point of a fine-tune.
type BaseModel struct {
	Name                   string         `json:"name" yaml:"name"`
	HuggingFaceRepo        string         `json:"hugging_face_repo" yaml:"hugging_face_repo"`
	FineTunable            bool           `json:"fine_tunable" yaml:"fine_tunable"`
	FineTuneImage          string         `json:"-" yaml:"fine_tune_image"`
	FineTuneImageTag       string         `json:"-" yaml:"fine_tune_image_tag"`
	GPUs                   int            `json:"gpus" yaml:"gpus"`
	GPUType                string         `json:"gpu_type" yaml:"gpu_type"`
	NumShards              int            `json:"num_shards" yaml:"num_shards"`
	DefaultHyperparameters map[string]any `json:"default_hyperparameters" yaml:"default_hyperparameters"`
	AllowedHyperparameters []string       `json:"allowed_hyperparameters" yaml:"allowed_hyperparameters"`
}

// DefaultAllowedHyperparameters applies when a catalog entry lists none
var DefaultAllowedHyperparameters = []string{"lr", "epochs", "batch_size", "warmup_ratio", "weight_decay"}

// ResolveHyperparameters validates user overrides against the allowed keys and
// merges them over the catalog defaults.
func (m *BaseModel) ResolveHyperparameters(overrides map[string]any) (map[string]any, error) {
	allowed := m.AllowedHyperparameters
	if len(allowed) == 0 {
		allowed = DefaultAllowedHyperparameters
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = true
	}

	var unknown []string
	for k := range overrides {
		if !allowedSet[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unsupported keys %v for %s", ErrInvalidHyperparameter, unknown, m.Name)
	}

	resolved := make(map[string]any, len(m.DefaultHyperparameters)+len(overrides))
	for k, v := range m.DefaultHyperparameters {
		resolved[k] = v
	}
	for k, v := range overrides {
		resolved[k] = v
	}
	return resolved, nil
}

// FineTuneImageRef returns the full container image of the training job
func (m *BaseModel) FineTuneImageRef() string {
	if m.FineTuneImageTag == "" {
		return m.FineTuneImage
	}
	return m.FineTuneImage + ":" + m.FineTuneImageTag
}
