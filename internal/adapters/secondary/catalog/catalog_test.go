package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-engine-service/internal/core/domain"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	models := c.List()
	require.Len(t, models, 5)
	assert.Equal(t, "falcon-7b", models[0].Name)

	llama, err := c.Get("llama-2-7b")
	require.NoError(t, err)
	assert.True(t, llama.FineTunable)
	assert.Equal(t, defaultFineTuneImage+":llama-2", llama.FineTuneImageRef())

	falcon, err := c.Get("falcon-7b")
	require.NoError(t, err)
	assert.False(t, falcon.FineTunable)

	_, err = c.Get("gpt-4")
	assert.ErrorIs(t, err, domain.ErrBaseModelNotFound)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
models:
  - name: mistral-7b
    hugging_face_repo: mistralai/Mistral-7B-v0.1
    fine_tunable: true
    fine_tune_image: registry.local/fine-tune
    fine_tune_image_tag: "0.3"
    gpus: 1
    gpu_type: nvidia-hopper-h100
    num_shards: 1
    default_hyperparameters:
      lr: 0.0001
      epochs: 2
    allowed_hyperparameters: [lr, epochs]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	m, err := c.Get("mistral-7b")
	require.NoError(t, err)
	assert.Equal(t, "registry.local/fine-tune:0.3", m.FineTuneImageRef())
	assert.Equal(t, 2, m.DefaultHyperparameters["epochs"])
	assert.Equal(t, []string{"lr", "epochs"}, m.AllowedHyperparameters)

	_, err = m.ResolveHyperparameters(map[string]any{"batch_size": 4})
	assert.ErrorIs(t, err, domain.ErrInvalidHyperparameter)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	dup := filepath.Join(t.TempDir(), "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("models:\n  - name: a\n  - name: a\n"), 0o600))
	_, err = Load(dup)
	assert.ErrorContains(t, err, "duplicate")

	noImage := filepath.Join(t.TempDir(), "noimage.yaml")
	require.NoError(t, os.WriteFile(noImage, []byte("models:\n  - name: a\n    fine_tunable: true\n"), 0o600))
	_, err = Load(noImage)
	assert.ErrorContains(t, err, "fine_tune_image")
}
