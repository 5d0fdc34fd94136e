package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-engine-service/internal/core/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		wantRows int
		wantErr  string
	}{
		{"valid", "prompt,response\nhi,hello\nbye,goodbye\n", 2, ""},
		{"case and spaces in header", " Prompt , RESPONSE ,source\n\"a, b\",c,web\n", 1, ""},
		{"byte order mark", "\ufeffprompt,response\nq,a\n", 1, ""},
		{"empty file", "", 0, "file is empty"},
		{"missing column", "prompt,answer\nq,a\n", 0, "header must contain"},
		{"header only", "prompt,response\n", 0, "no data rows"},
		{"empty response", "prompt,response\nq,a\nq2,  \n", 0, "line 3 has an empty response"},
		{"ragged row", "prompt,response\nq,a,extra\n", 0, "wrong number of fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rows, err := Parse(strings.NewReader(tt.csv))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidDataset)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, rows)
		})
	}
}

func TestValidator_FetchesHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "llm-engine-service", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("prompt,response\nWhat is 2+2?,4\n"))
	}))
	defer server.Close()

	v := NewValidator(Options{Timeout: time.Second})
	summary, err := v.Validate(context.Background(), server.URL+"/train.csv")
	require.NoError(t, err)
	assert.True(t, summary.Fetched)
	assert.Equal(t, 1, summary.Rows)
	assert.Equal(t, []string{"prompt", "response"}, summary.Columns)
}

func TestValidator_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	v := NewValidator(Options{})
	_, err := v.Validate(context.Background(), server.URL+"/missing.csv?X-Amz-Signature=secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidDataset)
	assert.Contains(t, err.Error(), "status 404")
	assert.NotContains(t, err.Error(), "secret")
}

func TestValidator_RetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("prompt,response\nq,a\n"))
	}))
	defer server.Close()

	v := NewValidator(Options{RetryMax: 2, RetryWaitMin: time.Millisecond})
	summary, err := v.Validate(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rows)
	assert.Equal(t, 2, calls)
}

func TestValidator_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("prompt,response\n" + strings.Repeat("question,answer\n", 100)))
	}))
	defer server.Close()

	v := NewValidator(Options{MaxBytes: 64})
	_, err := v.Validate(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidDataset)
	assert.Contains(t, err.Error(), "exceeds 64 bytes")
}

func TestValidator_ObjectStoreNotFetched(t *testing.T) {
	v := NewValidator(Options{})

	summary, err := v.Validate(context.Background(), "s3://bucket/data/train.csv")
	require.NoError(t, err)
	assert.False(t, summary.Fetched)

	_, err = v.Validate(context.Background(), "ftp://host/train.csv")
	assert.ErrorIs(t, err, domain.ErrInvalidFileLocation)
}
