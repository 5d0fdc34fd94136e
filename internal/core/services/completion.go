package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

type CompletionService struct {
	endpoints *ModelEndpointService
	client    output.InferenceClient
}

func NewCompletionService(endpoints *ModelEndpointService, client output.InferenceClient) *CompletionService {
	return &CompletionService{endpoints: endpoints, client: client}
}

// newRequestID reuses the API request ID so completions can be traced through
// the access log
func newRequestID(ctx context.Context) string {
	if id := domain.RequestIDFrom(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}

func (s *CompletionService) resolve(ctx context.Context, owner, endpointName string, req domain.CompletionRequest) (*domain.ModelEndpoint, error) {
	if endpointName == "" {
		return nil, domain.ErrMissingEndpointName
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.endpoints.GetReady(ctx, owner, endpointName)
}

// CreateSync runs a completion and waits for the full output
func (s *CompletionService) CreateSync(ctx context.Context, owner, endpointName string, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	endpoint, err := s.resolve(ctx, owner, endpointName, req)
	if err != nil {
		return nil, err
	}

	requestID := newRequestID(ctx)
	out, err := s.client.Generate(ctx, endpoint.URL, req)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"request_id": requestID,
			"endpoint":   endpoint.Name,
		}).Error("completion failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err)
	}

	return &domain.CompletionResult{RequestID: requestID, Output: *out}, nil
}

// CreateStream runs a completion and hands every token to emit. Errors that
// occur before the first token are returned without calling emit.
func (s *CompletionService) CreateStream(
	ctx context.Context,
	owner, endpointName string,
	req domain.CompletionRequest,
	emit func(domain.CompletionStreamResult) error,
) error {
	endpoint, err := s.resolve(ctx, owner, endpointName, req)
	if err != nil {
		return err
	}

	requestID := newRequestID(ctx)
	err = s.client.GenerateStream(ctx, endpoint.URL, req, func(out domain.CompletionStreamOutput) error {
		return emit(domain.CompletionStreamResult{RequestID: requestID, Output: out})
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"request_id": requestID,
			"endpoint":   endpoint.Name,
		}).Error("streaming completion failed")
		return fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err)
	}
	return nil
}
