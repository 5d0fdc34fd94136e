package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

const (
	promptColumn   = "prompt"
	responseColumn = "response"
)

// Options configures remote dataset fetching
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	MaxBytes     int64
	UserAgent    string
}

type validator struct {
	client    *retryablehttp.Client
	maxBytes  int64
	userAgent string
}

// NewValidator checks that http(s) datasets are prompt/response CSV files.
// Object store locations are accepted as-is since the training job reads them
// with its own credentials.
func NewValidator(opts Options) output.DatasetValidator {
	client := retryablehttp.NewClient()
	client.Logger = leveledLogger{}
	client.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 100 << 20
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "llm-engine-service"
	}
	return &validator{client: client, maxBytes: maxBytes, userAgent: userAgent}
}

func (v *validator) Validate(ctx context.Context, location string) (*output.DatasetSummary, error) {
	if err := domain.ValidateFileLocation(location); err != nil {
		return nil, err
	}
	if !domain.IsRemoteFetchable(location) {
		return &output.DatasetSummary{Location: location}, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFileLocation, err)
	}
	req.Header.Set("User-Agent", v.userAgent)
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := v.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrInvalidDataset, redact(location), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s returned status %d", domain.ErrInvalidDataset, redact(location), resp.StatusCode)
	}

	limited := &io.LimitedReader{R: resp.Body, N: v.maxBytes + 1}
	columns, rows, err := Parse(limited)
	if limited.N <= 0 {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidDataset, v.maxBytes)
	}
	if err != nil {
		return nil, err
	}

	return &output.DatasetSummary{
		Location: location,
		Columns:  columns,
		Rows:     rows,
		Fetched:  true,
	}, nil
}

// Parse reads a training CSV and returns its header and number of data rows.
// The header must name prompt and response columns and every row must fill
// both.
func Parse(r io.Reader) ([]string, int, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("%w: file is empty", domain.ErrInvalidDataset)
		}
		return nil, 0, fmt.Errorf("%w: read header: %v", domain.ErrInvalidDataset, err)
	}

	promptIdx, responseIdx := -1, -1
	columns := make([]string, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		columns[i] = name
		switch name {
		case promptColumn:
			promptIdx = i
		case responseColumn:
			responseIdx = i
		}
	}
	if promptIdx < 0 || responseIdx < 0 {
		return nil, 0, fmt.Errorf("%w: header must contain %q and %q columns, got %v",
			domain.ErrInvalidDataset, promptColumn, responseColumn, columns)
	}

	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", domain.ErrInvalidDataset, err)
		}
		rows++
		line, _ := reader.FieldPos(0)
		if strings.TrimSpace(record[promptIdx]) == "" {
			return nil, 0, fmt.Errorf("%w: line %d has an empty prompt", domain.ErrInvalidDataset, line)
		}
		if strings.TrimSpace(record[responseIdx]) == "" {
			return nil, 0, fmt.Errorf("%w: line %d has an empty response", domain.ErrInvalidDataset, line)
		}
	}

	if rows == 0 {
		return nil, 0, fmt.Errorf("%w: no data rows", domain.ErrInvalidDataset)
	}
	return columns, rows, nil
}

// redact drops query strings, which often carry pre-signed credentials
func redact(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
