package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

const defaultFineTuneImage = "public.ecr.aws/llm-engine/fine-tune"

// file is the on-disk catalog layout
type file struct {
	Models []*domain.BaseModel `yaml:"models"`
}

type catalog struct {
	models map[string]*domain.BaseModel
	order  []string
}

// Load reads the catalog from path, or returns the built-in catalog when path is empty
func Load(path string) (output.BaseModelCatalog, error) {
	if path == "" {
		return New(Defaults())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(f.Models)
}

// New builds a catalog from entries, rejecting blank and duplicate names
func New(models []*domain.BaseModel) (output.BaseModelCatalog, error) {
	c := &catalog{models: make(map[string]*domain.BaseModel, len(models))}
	for _, m := range models {
		if m == nil || m.Name == "" {
			return nil, fmt.Errorf("catalog entry without name")
		}
		if _, dup := c.models[m.Name]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", m.Name)
		}
		if m.FineTunable && m.FineTuneImage == "" {
			return nil, fmt.Errorf("catalog entry %q is fine-tunable but has no fine_tune_image", m.Name)
		}
		c.models[m.Name] = m
		c.order = append(c.order, m.Name)
	}
	sort.Strings(c.order)
	return c, nil
}

func (c *catalog) Get(name string) (*domain.BaseModel, error) {
	m, ok := c.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBaseModelNotFound, name)
	}
	return m, nil
}

func (c *catalog) List() []*domain.BaseModel {
	out := make([]*domain.BaseModel, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.models[name])
	}
	return out
}

// Defaults is the catalog served when no file is configured
func Defaults() []*domain.BaseModel {
	loraDefaults := func() map[string]any {
		return map[string]any{"lr": 0.0002, "epochs": 1, "batch_size": 8, "warmup_ratio": 0.03, "weight_decay": 0.0}
	}
	return []*domain.BaseModel{
		{
			Name:                   "llama-2-7b",
			HuggingFaceRepo:        "meta-llama/Llama-2-7b-hf",
			FineTunable:            true,
			FineTuneImage:          defaultFineTuneImage,
			FineTuneImageTag:       "llama-2",
			GPUs:                   1,
			GPUType:                "nvidia-ampere-a10",
			NumShards:              1,
			DefaultHyperparameters: loraDefaults(),
		},
		{
			Name:                   "llama-2-13b",
			HuggingFaceRepo:        "meta-llama/Llama-2-13b-hf",
			FineTunable:            true,
			FineTuneImage:          defaultFineTuneImage,
			FineTuneImageTag:       "llama-2",
			GPUs:                   2,
			GPUType:                "nvidia-ampere-a100",
			NumShards:              2,
			DefaultHyperparameters: loraDefaults(),
		},
		{
			Name:                   "mpt-7b",
			HuggingFaceRepo:        "mosaicml/mpt-7b",
			FineTunable:            true,
			FineTuneImage:          defaultFineTuneImage,
			FineTuneImageTag:       "mpt",
			GPUs:                   1,
			GPUType:                "nvidia-ampere-a10",
			NumShards:              1,
			DefaultHyperparameters: loraDefaults(),
		},
		{
			Name:            "falcon-7b",
			HuggingFaceRepo: "tiiuae/falcon-7b",
			GPUs:            1,
			GPUType:         "nvidia-ampere-a10",
			NumShards:       1,
		},
		{
			Name:            "flan-t5-xxl",
			HuggingFaceRepo: "google/flan-t5-xxl",
			GPUs:            1,
			GPUType:         "nvidia-ampere-a10",
			NumShards:       1,
		},
	}
}
