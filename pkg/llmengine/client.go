package llmengine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	defaultTimeout = 60 * time.Second
	apiPrefix      = "/v1/llm"
)

// Client talks to the LLM Engine HTTP API
type Client struct {
	http       *resty.Client
	stream     *resty.Client
	streamIdle time.Duration
}

type Option func(*Client)

// WithTimeout bounds every non-streaming request. Streams are not affected,
// see WithStreamIdleTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithStreamIdleTimeout fails a completion stream once the server has sent
// nothing for d. Zero waits as long as the context allows.
func WithStreamIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.streamIdle = d }
}

// NewClient authenticates with apiKey as the basic auth username
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	newHTTP := func() *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")+apiPrefix).
			SetBasicAuth(apiKey, "").
			SetHeader("Accept", "application/json")
	}
	c := &Client{
		http:       newHTTP().SetTimeout(defaultTimeout),
		stream:     newHTTP(),
		streamIdle: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	apiErr := &APIError{}
	req := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		return apiErr
	}
	return nil
}

func (c *Client) CreateFineTune(ctx context.Context, req CreateFineTuneRequest) (*CreateFineTuneResponse, error) {
	out := &CreateFineTuneResponse{}
	if err := c.do(ctx, http.MethodPost, "/fine-tunes", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetFineTune(ctx context.Context, id string) (*FineTune, error) {
	out := &FineTune{}
	if err := c.do(ctx, http.MethodGet, "/fine-tunes/"+url.PathEscape(id), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListFineTunes(ctx context.Context) (*ListFineTunesResponse, error) {
	out := &ListFineTunesResponse{}
	if err := c.do(ctx, http.MethodGet, "/fine-tunes", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CancelFineTune(ctx context.Context, id string) (*CancelFineTuneResponse, error) {
	out := &CancelFineTuneResponse{}
	if err := c.do(ctx, http.MethodPut, "/fine-tunes/"+url.PathEscape(id)+"/cancel", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateModel(ctx context.Context, req CreateModelRequest) (*CreateModelResponse, error) {
	out := &CreateModelResponse{}
	if err := c.do(ctx, http.MethodPost, "/model-endpoints", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListModels(ctx context.Context) (*ListModelsResponse, error) {
	out := &ListModelsResponse{}
	if err := c.do(ctx, http.MethodGet, "/model-endpoints", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetModel(ctx context.Context, name string) (*Model, error) {
	out := &Model{}
	if err := c.do(ctx, http.MethodGet, "/model-endpoints/"+url.PathEscape(name), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteModel(ctx context.Context, name string) (*DeleteModelResponse, error) {
	out := &DeleteModelResponse{}
	if err := c.do(ctx, http.MethodDelete, "/model-endpoints/"+url.PathEscape(name), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBaseModels returns the models that can be served or fine-tuned
func (c *Client) ListBaseModels(ctx context.Context) (*ListBaseModelsResponse, error) {
	out := &ListBaseModelsResponse{}
	if err := c.do(ctx, http.MethodGet, "/models", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCompletion runs a prompt against the named model and waits for the output
func (c *Client) CreateCompletion(ctx context.Context, model string, req CompletionRequest) (*Completion, error) {
	out := &Completion{}
	path := "/completions-sync?model_endpoint_name=" + url.QueryEscape(model)
	if err := c.do(ctx, http.MethodPost, path, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCompletionStream runs a prompt and calls fn for every token. An error
// event from the server ends the stream with an *APIError.
func (c *Client) CreateCompletionStream(
	ctx context.Context,
	model string,
	req CompletionRequest,
	fn func(CompletionStreamResponse) error,
) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var idle atomic.Bool
	var timer *time.Timer
	if c.streamIdle > 0 {
		timer = time.AfterFunc(c.streamIdle, func() {
			idle.Store(true)
			cancel()
		})
		defer timer.Stop()
	}
	idleErr := func(err error) error {
		if idle.Load() {
			return fmt.Errorf("%w: no data from server for %s", context.DeadlineExceeded, c.streamIdle)
		}
		return err
	}

	resp, err := c.stream.R().
		SetContext(streamCtx).
		SetQueryParam("model_endpoint_name", model).
		SetHeader("Accept", "text/event-stream").
		SetBody(req).
		SetDoNotParseResponse(true).
		Post("/completions-stream")
	if err != nil {
		return fmt.Errorf("POST /completions-stream: %w", idleErr(err))
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode()}
		if err := json.NewDecoder(body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = resp.Status()
		}
		return apiErr
	}

	event := ""
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if timer != nil {
			timer.Reset(c.streamIdle)
		}
		line := scanner.Text()
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			var chunk CompletionStreamResponse
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &chunk); err != nil {
				return fmt.Errorf("decode stream event: %w", err)
			}
			if event == "error" || chunk.Error != "" {
				return &APIError{StatusCode: http.StatusOK, Message: chunk.Error}
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", idleErr(err))
	}
	return nil
}
