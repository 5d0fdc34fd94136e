package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

// MockFineTuneRepo is a mock of FineTuneRepository.
type MockFineTuneRepo struct {
	mock.Mock
}

func (m *MockFineTuneRepo) Create(ctx context.Context, ft *domain.FineTune) error {
	args := m.Called(ctx, ft)
	return args.Error(0)
}

func (m *MockFineTuneRepo) GetByID(ctx context.Context, owner, id string) (*domain.FineTune, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FineTune), args.Error(1)
}

func (m *MockFineTuneRepo) GetByIDAny(ctx context.Context, id string) (*domain.FineTune, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FineTune), args.Error(1)
}

func (m *MockFineTuneRepo) Update(ctx context.Context, ft *domain.FineTune, expected domain.FineTuneStatus) error {
	args := m.Called(ctx, ft, expected)
	return args.Error(0)
}

func (m *MockFineTuneRepo) List(ctx context.Context, filter output.FineTuneFilter) ([]*domain.FineTune, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.FineTune), args.Int(1), args.Error(2)
}

func (m *MockFineTuneRepo) ListByStatus(ctx context.Context, statuses []domain.FineTuneStatus, limit int) ([]*domain.FineTune, error) {
	args := m.Called(ctx, statuses, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FineTune), args.Error(1)
}

func (m *MockFineTuneRepo) ListUnregistered(ctx context.Context, limit int) ([]*domain.FineTune, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FineTune), args.Error(1)
}

// MockModelEndpointRepo is a mock of ModelEndpointRepository.
type MockModelEndpointRepo struct {
	mock.Mock
}

func (m *MockModelEndpointRepo) Create(ctx context.Context, endpoint *domain.ModelEndpoint) error {
	args := m.Called(ctx, endpoint)
	return args.Error(0)
}

func (m *MockModelEndpointRepo) GetByID(ctx context.Context, id string) (*domain.ModelEndpoint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelEndpoint), args.Error(1)
}

func (m *MockModelEndpointRepo) GetByName(ctx context.Context, owner, name string) (*domain.ModelEndpoint, error) {
	args := m.Called(ctx, owner, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelEndpoint), args.Error(1)
}

func (m *MockModelEndpointRepo) Update(ctx context.Context, endpoint *domain.ModelEndpoint) error {
	args := m.Called(ctx, endpoint)
	return args.Error(0)
}

func (m *MockModelEndpointRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockModelEndpointRepo) List(ctx context.Context, filter output.ModelEndpointFilter) ([]*domain.ModelEndpoint, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.ModelEndpoint), args.Int(1), args.Error(2)
}
