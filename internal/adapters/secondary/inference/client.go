package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

// tgiRequest is the text-generation-inference request body
type tgiRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters tgiParameters `json:"parameters"`
}

type tgiParameters struct {
	MaxNewTokens int      `json:"max_new_tokens"`
	Temperature  *float64 `json:"temperature,omitempty"`
	DoSample     bool     `json:"do_sample"`
	Stop         []string `json:"stop,omitempty"`
	Details      bool     `json:"details"`
}

type tgiDetails struct {
	FinishReason    string `json:"finish_reason"`
	GeneratedTokens int    `json:"generated_tokens"`
}

type tgiResponse struct {
	GeneratedText string      `json:"generated_text"`
	Details       *tgiDetails `json:"details"`
}

type tgiStreamEvent struct {
	Token struct {
		Text    string `json:"text"`
		Special bool   `json:"special"`
	} `json:"token"`
	GeneratedText *string     `json:"generated_text"`
	Details       *tgiDetails `json:"details"`
	Error         string      `json:"error"`
}

type tgiError struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

type client struct {
	http   *resty.Client
	stream *resty.Client
	idle   time.Duration
}

// NewClient talks the text-generation-inference protocol to model endpoints.
// timeout bounds a whole sync request. Streams have no overall deadline
// besides the caller's context and fail once the endpoint is silent for timeout.
func NewClient(timeout time.Duration) output.InferenceClient {
	newHTTP := func() *resty.Client {
		return resty.New().
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
	}
	return &client{
		http:   newHTTP().SetTimeout(timeout),
		stream: newHTTP(),
		idle:   timeout,
	}
}

func buildRequest(req domain.CompletionRequest) tgiRequest {
	params := tgiParameters{
		MaxNewTokens: req.MaxNewTokens,
		DoSample:     !req.Greedy(),
		Stop:         req.StopSequences,
		Details:      true,
	}
	// TGI rejects a zero temperature; greedy decoding is do_sample=false
	if !req.Greedy() {
		t := req.Temperature
		params.Temperature = &t
	}
	return tgiRequest{Inputs: req.Prompt, Parameters: params}
}

func (c *client) Generate(ctx context.Context, url string, req domain.CompletionRequest) (*domain.CompletionOutput, error) {
	var result tgiResponse
	var apiErr tgiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(buildRequest(req)).
		SetResult(&result).
		SetError(&apiErr).
		Post(strings.TrimRight(url, "/") + "/generate")
	if err != nil {
		return nil, fmt.Errorf("call generate: %w", err)
	}
	if resp.IsError() {
		return nil, upstreamError(resp.StatusCode(), apiErr.Error, resp.String())
	}

	out := &domain.CompletionOutput{Text: result.GeneratedText}
	if result.Details != nil {
		out.NumCompletionTokens = result.Details.GeneratedTokens
	}
	return out, nil
}

func (c *client) GenerateStream(ctx context.Context, url string, req domain.CompletionRequest, handle output.StreamHandler) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := newIdleWatchdog(c.idle, cancel)
	defer watchdog.stop()

	resp, err := c.stream.R().
		SetContext(streamCtx).
		SetBody(buildRequest(req)).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post(strings.TrimRight(url, "/") + "/generate_stream")
	if err != nil {
		if watchdog.expired() {
			return fmt.Errorf("call generate_stream: %w", c.idleError())
		}
		return fmt.Errorf("call generate_stream: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(body)
		var apiErr tgiError
		_ = json.Unmarshal(buf.Bytes(), &apiErr)
		return upstreamError(resp.StatusCode(), apiErr.Error, buf.String())
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	finished := false
	for scanner.Scan() {
		watchdog.touch()
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event tgiStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return fmt.Errorf("decode stream event: %w", err)
		}
		if event.Error != "" {
			return fmt.Errorf("stream error: %s", event.Error)
		}

		out := domain.CompletionStreamOutput{Text: event.Token.Text}
		if event.Token.Special {
			out.Text = ""
		}
		if event.GeneratedText != nil {
			out.Finished = true
			finished = true
			if event.Details != nil {
				out.NumCompletionTokens = event.Details.GeneratedTokens
			}
		}
		if err := handle(out); err != nil {
			return err
		}
		if finished {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if watchdog.expired() {
			return fmt.Errorf("read stream: %w", c.idleError())
		}
		return fmt.Errorf("read stream: %w", err)
	}
	if !finished {
		return errors.New("stream ended before generation finished")
	}
	return nil
}

func (c *client) idleError() error {
	return fmt.Errorf("%w: no data from model endpoint for %s", context.DeadlineExceeded, c.idle)
}

const maxUpstreamMessage = 512

func upstreamError(status int, msg, body string) error {
	if msg == "" {
		msg = strings.TrimSpace(body)
	}
	return fmt.Errorf("model endpoint returned %d: %s", status, truncate(msg, maxUpstreamMessage))
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var _ output.InferenceClient = (*client)(nil)
