package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--base-url", srv.URL, "--api-key", "alice"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestFineTunesCreate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/llm/fine-tunes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"fine_tune_id":"ft-123"}`)
	}))
	defer srv.Close()

	out, err := run(t, srv, "fine-tunes", "create",
		"--model", "llama-2-7b",
		"--training-file", "https://example.com/train.csv",
		"--suffix", "demo",
		"--hyperparameters", "epochs=2,lr=0.0001,peft=lora",
	)
	require.NoError(t, err)
	assert.Contains(t, out, `"fine_tune_id": "ft-123"`)

	assert.Equal(t, "llama-2-7b", got["model"])
	assert.Equal(t, "demo", got["suffix"])
	hp := got["hyperparameters"].(map[string]any)
	assert.Equal(t, float64(2), hp["epochs"])
	assert.Equal(t, 0.0001, hp["lr"])
	assert.Equal(t, "lora", hp["peft"])
}

func TestFineTunesCreate_MissingFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Fail(t, "no request expected")
	}))
	defer srv.Close()

	_, err := run(t, srv, "fine-tunes", "create", "--model", "llama-2-7b")
	assert.Error(t, err)
}

func TestFineTunesGet_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/llm/fine-tunes/ft-missing", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"fine-tune not found"}`)
	}))
	defer srv.Close()

	_, err := run(t, srv, "fine-tunes", "get", "ft-missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "fine-tune not found")
}

func TestModelsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/llm/model-endpoints", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model_endpoints":[{"name":"my-llama","model_name":"llama-2-7b","status":"READY","owner":"alice"}],"total":1}`)
	}))
	defer srv.Close()

	out, err := run(t, srv, "models", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "my-llama")
	assert.Contains(t, out, "READY")
}

func TestModelsCreate_WorkersOnlyWhenSet(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"endpoint_creation_task_id":"end-1"}`)
	}))
	defer srv.Close()

	_, err := run(t, srv, "models", "create", "my-llama", "--model", "llama-2-7b", "--max-workers", "3")
	require.NoError(t, err)
	assert.Equal(t, "my-llama", got["name"])
	assert.Equal(t, float64(3), got["max_workers"])
	assert.NotContains(t, got, "min_workers")
}

func TestCompletionsCreate_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/llm/completions-stream", r.URL.Path)
		assert.Equal(t, "my-llama", r.URL.Query().Get("model_endpoint_name"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event:message\ndata:{\"request_id\":\"r1\",\"output\":{\"text\":\"Hello\",\"finished\":false}}\n\n")
		fmt.Fprint(w, "event:message\ndata:{\"request_id\":\"r1\",\"output\":{\"text\":\" world\",\"finished\":true,\"num_completion_tokens\":2}}\n\n")
	}))
	defer srv.Close()

	out, err := run(t, srv, "completions", "create", "my-llama", "--prompt", "Say hi", "--max-new-tokens", "2", "--stream")
	require.NoError(t, err)
	assert.Equal(t, "Hello world\n", out)
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("LLM_ENGINE_API_KEY", "")
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"fine-tunes", "list"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestAPIKeyFromEnv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		assert.Equal(t, "bob", user)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jobs":[],"total":0}`)
	}))
	defer srv.Close()

	t.Setenv("LLM_ENGINE_API_KEY", "bob")
	t.Setenv("LLM_ENGINE_BASE_URL", srv.URL)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"fine-tunes", "list"})
	require.NoError(t, root.Execute())
}

func TestParseHyperparameters(t *testing.T) {
	got := parseHyperparameters(map[string]string{"epochs": "3", "lr": "1e-4", "fp16": "true", "peft": "lora"})
	assert.Equal(t, int64(3), got["epochs"])
	assert.Equal(t, 1e-4, got["lr"])
	assert.Equal(t, true, got["fp16"])
	assert.Equal(t, "lora", got["peft"])
	assert.Nil(t, parseHyperparameters(nil))
}
