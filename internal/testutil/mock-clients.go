package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

// MockCatalog is a mock of BaseModelCatalog.
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Get(name string) (*domain.BaseModel, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BaseModel), args.Error(1)
}

func (m *MockCatalog) List() []*domain.BaseModel {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*domain.BaseModel)
}

// MockDatasetValidator is a mock of DatasetValidator.
type MockDatasetValidator struct {
	mock.Mock
}

func (m *MockDatasetValidator) Validate(ctx context.Context, location string) (*output.DatasetSummary, error) {
	args := m.Called(ctx, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*output.DatasetSummary), args.Error(1)
}

// MockJobQueue is a mock of JobQueue.
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Publish(ctx context.Context, fineTuneID string) error {
	args := m.Called(ctx, fineTuneID)
	return args.Error(0)
}

func (m *MockJobQueue) Consume(ctx context.Context, workerCount int, handler output.QueueHandler) error {
	args := m.Called(ctx, workerCount, handler)
	return args.Error(0)
}

func (m *MockJobQueue) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockTrainingOrchestrator is a mock of TrainingOrchestrator.
type MockTrainingOrchestrator struct {
	mock.Mock
}

func (m *MockTrainingOrchestrator) Launch(ctx context.Context, spec output.TrainingJobSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

func (m *MockTrainingOrchestrator) GetStatus(ctx context.Context, jobName string) (*output.TrainingJobStatus, error) {
	args := m.Called(ctx, jobName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*output.TrainingJobStatus), args.Error(1)
}

func (m *MockTrainingOrchestrator) Cancel(ctx context.Context, jobName string) error {
	args := m.Called(ctx, jobName)
	return args.Error(0)
}

func (m *MockTrainingOrchestrator) IsAvailable() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockServingOrchestrator is a mock of ServingOrchestrator.
type MockServingOrchestrator struct {
	mock.Mock
}

func (m *MockServingOrchestrator) Deploy(ctx context.Context, endpoint *domain.ModelEndpoint, model *domain.BaseModel) (*output.ServingDeployment, error) {
	args := m.Called(ctx, endpoint, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*output.ServingDeployment), args.Error(1)
}

func (m *MockServingOrchestrator) Undeploy(ctx context.Context, endpoint *domain.ModelEndpoint) error {
	args := m.Called(ctx, endpoint)
	return args.Error(0)
}

func (m *MockServingOrchestrator) GetStatus(ctx context.Context, endpoint *domain.ModelEndpoint) (*output.ServingStatus, error) {
	args := m.Called(ctx, endpoint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*output.ServingStatus), args.Error(1)
}

func (m *MockServingOrchestrator) IsAvailable() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockInferenceClient is a mock of InferenceClient. Tokens queued in
// StreamTokens are handed to the stream handler before the mocked error is
// returned.
type MockInferenceClient struct {
	mock.Mock
	StreamTokens []domain.CompletionStreamOutput
}

func (m *MockInferenceClient) Generate(ctx context.Context, url string, req domain.CompletionRequest) (*domain.CompletionOutput, error) {
	args := m.Called(ctx, url, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompletionOutput), args.Error(1)
}

func (m *MockInferenceClient) GenerateStream(ctx context.Context, url string, req domain.CompletionRequest, handle output.StreamHandler) error {
	args := m.Called(ctx, url, req)
	for _, tok := range m.StreamTokens {
		if err := handle(tok); err != nil {
			return err
		}
	}
	return args.Error(0)
}
