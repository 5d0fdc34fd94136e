package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-engine-service/internal/core/domain"
)

func TestClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hello", body["inputs"])
		params := body["parameters"].(map[string]any)
		assert.Equal(t, float64(16), params["max_new_tokens"])
		assert.Equal(t, true, params["do_sample"])
		assert.Equal(t, 0.5, params["temperature"])
		assert.Equal(t, []any{"\n"}, params["stop"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"generated_text":" world","details":{"finish_reason":"length","generated_tokens":2}}`))
	}))
	defer server.Close()

	c := NewClient(time.Second)
	out, err := c.Generate(context.Background(), server.URL+"/", domain.CompletionRequest{
		Prompt: "Hello", MaxNewTokens: 16, Temperature: 0.5, StopSequences: []string{"\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, " world", out.Text)
	assert.Equal(t, 2, out.NumCompletionTokens)
}

func TestClient_Generate_GreedyOmitsTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		params := body["parameters"].(map[string]any)
		assert.Equal(t, false, params["do_sample"])
		assert.NotContains(t, params, "temperature")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"generated_text":"ok"}`))
	}))
	defer server.Close()

	out, err := NewClient(time.Second).Generate(context.Background(), server.URL, domain.CompletionRequest{Prompt: "x", MaxNewTokens: 1})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, 0, out.NumCompletionTokens)
}

func TestClient_Generate_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"Input validation error: inputs too long","error_type":"validation"}`))
	}))
	defer server.Close()

	_, err := NewClient(time.Second).Generate(context.Background(), server.URL, domain.CompletionRequest{Prompt: "x", MaxNewTokens: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "inputs too long")
}

func TestClient_GenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate_stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"token":{"id":1,"text":"Hel","special":false},"generated_text":null,"details":null}`,
			`{"token":{"id":2,"text":"lo","special":false},"generated_text":null,"details":null}`,
			`{"token":{"id":3,"text":"</s>","special":true},"generated_text":"Hello","details":{"finish_reason":"eos_token","generated_tokens":3}}`,
		}
		for _, e := range events {
			fmt.Fprintf(w, "data:%s\n\n", e)
		}
	}))
	defer server.Close()

	var got []domain.CompletionStreamOutput
	err := NewClient(time.Second).GenerateStream(context.Background(), server.URL,
		domain.CompletionRequest{Prompt: "x", MaxNewTokens: 5},
		func(out domain.CompletionStreamOutput) error {
			got = append(got, out)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Hel", got[0].Text)
	assert.False(t, got[1].Finished)
	assert.True(t, got[2].Finished)
	assert.Equal(t, "", got[2].Text)
	assert.Equal(t, 3, got[2].NumCompletionTokens)
}

func TestClient_GenerateStream_ErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data:{\"token\":{\"text\":\"a\"},\"generated_text\":null}\n\n")
		fmt.Fprint(w, "data:{\"error\":\"CUDA out of memory\",\"error_type\":\"generation\"}\n\n")
	}))
	defer server.Close()

	calls := 0
	err := NewClient(time.Second).GenerateStream(context.Background(), server.URL,
		domain.CompletionRequest{Prompt: "x", MaxNewTokens: 5},
		func(domain.CompletionStreamOutput) error {
			calls++
			return nil
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")
	assert.Equal(t, 1, calls)
}

func TestClient_GenerateStream_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data:{\"token\":{\"text\":\"a\"},\"generated_text\":null}\n\n")
	}))
	defer server.Close()

	err := NewClient(time.Second).GenerateStream(context.Background(), server.URL,
		domain.CompletionRequest{Prompt: "x", MaxNewTokens: 5},
		func(domain.CompletionStreamOutput) error { return nil })
	assert.Error(t, err)
}

func TestClient_GenerateStream_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model is overloaded"}`))
	}))
	defer server.Close()

	err := NewClient(time.Second).GenerateStream(context.Background(), server.URL,
		domain.CompletionRequest{Prompt: "x", MaxNewTokens: 5},
		func(domain.CompletionStreamOutput) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Model is overloaded")
}

func TestClient_GenerateStream_OutlivesRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, "data:{\"token\":{\"text\":\"t%d\"},\"generated_text\":null}\n\n", i)
			flusher.Flush()
			time.Sleep(60 * time.Millisecond)
		}
		fmt.Fprint(w, "data:{\"token\":{\"text\":\"</s>\",\"special\":true},\"generated_text\":\"t0t1t2t3t4\",\"details\":{\"generated_tokens\":6}}\n\n")
	}))
	defer server.Close()

	// 300ms of tokens against a 150ms timeout, each gap well inside it
	var got []domain.CompletionStreamOutput
	err := NewClient(150*time.Millisecond).GenerateStream(context.Background(), server.URL,
		domain.CompletionRequest{Prompt: "x", MaxNewTokens: 6},
		func(out domain.CompletionStreamOutput) error {
			got = append(got, out)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.True(t, got[5].Finished)
}

func TestClient_GenerateStream_IdleTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data:{\"token\":{\"text\":\"a\"},\"generated_text\":null}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	calls := 0
	start := time.Now()
	err := NewClient(100*time.Millisecond).GenerateStream(context.Background(), server.URL,
		domain.CompletionRequest{Prompt: "x", MaxNewTokens: 5},
		func(domain.CompletionStreamOutput) error {
			calls++
			return nil
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "no data from model endpoint")
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUpstreamError_TruncatesOnRuneBoundary(t *testing.T) {
	// 511 ASCII bytes followed by a 3-byte rune straddling the limit
	msg := strings.Repeat("a", 511) + "€" + "tail"
	err := upstreamError(http.StatusBadGateway, msg, "")

	text := err.Error()
	assert.True(t, utf8.ValidString(text))
	assert.True(t, strings.HasSuffix(text, strings.Repeat("a", 511)))
	assert.NotContains(t, text, "tail")

	assert.Equal(t, "héllo", truncate("héllo", 10))
	assert.Equal(t, "h", truncate("héllo", 2))
}
