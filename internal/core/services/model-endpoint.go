package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

type ModelEndpointService struct {
	repo    output.ModelEndpointRepository
	catalog output.BaseModelCatalog
	serving output.ServingOrchestrator
}

func NewModelEndpointService(
	repo output.ModelEndpointRepository,
	catalog output.BaseModelCatalog,
	serving output.ServingOrchestrator,
) *ModelEndpointService {
	return &ModelEndpointService{
		repo:    repo,
		catalog: catalog,
		serving: serving,
	}
}

type CreateModelEndpointInput struct {
	Name              string
	ModelName         string
	CheckpointPath    string
	FrameworkImageTag string
	NumShards         int
	GPUs              int
	GPUType           string
	MinWorkers        *int
	MaxWorkers        *int
	Public            bool
	Labels            map[string]string
	FineTuneID        string
}

func (s *ModelEndpointService) Create(ctx context.Context, owner string, in CreateModelEndpointInput) (*domain.ModelEndpoint, error) {
	endpoint, err := domain.NewModelEndpoint(owner, in.Name, in.ModelName)
	if err != nil {
		return nil, err
	}

	base, err := s.catalog.Get(in.ModelName)
	if err != nil {
		return nil, err
	}

	// Catalog sizing unless overridden
	endpoint.NumShards = firstPositive(in.NumShards, base.NumShards, 1)
	endpoint.GPUs = firstPositive(in.GPUs, base.GPUs, 1)
	endpoint.GPUType = base.GPUType
	if in.GPUType != "" {
		endpoint.GPUType = in.GPUType
	}
	if in.FrameworkImageTag != "" {
		endpoint.FrameworkImageTag = in.FrameworkImageTag
	}
	if in.MinWorkers != nil {
		endpoint.MinWorkers = *in.MinWorkers
	}
	if in.MaxWorkers != nil {
		endpoint.MaxWorkers = *in.MaxWorkers
	}
	if err := endpoint.ValidateScaling(); err != nil {
		return nil, err
	}
	endpoint.CheckpointPath = in.CheckpointPath
	endpoint.Public = in.Public
	endpoint.FineTuneID = in.FineTuneID
	if in.Labels != nil {
		endpoint.Labels = in.Labels
	}

	if err := s.repo.Create(ctx, endpoint); err != nil {
		return nil, err
	}

	s.deploy(ctx, endpoint, base)

	return s.repo.GetByID(ctx, endpoint.ID)
}

func (s *ModelEndpointService) deploy(ctx context.Context, endpoint *domain.ModelEndpoint, base *domain.BaseModel) {
	logger := log.WithFields(log.Fields{"endpoint_id": endpoint.ID, "name": endpoint.Name})

	if s.serving == nil || !s.serving.IsAvailable() {
		logger.Warn("serving integration disabled, endpoint stays pending")
		return
	}

	deployment, err := s.serving.Deploy(ctx, endpoint, base)
	if err != nil {
		logger.WithError(err).Error("deploy model endpoint failed")
		endpoint.MarkFailed(err.Error())
	} else {
		endpoint.MarkDeploying(deployment.ExternalID)
		if deployment.URL != "" {
			endpoint.MarkReady(deployment.URL)
		}
		logger.Info("model endpoint deployment initiated")
	}

	if err := s.repo.Update(ctx, endpoint); err != nil {
		logger.WithError(err).Error("record deployment state failed")
	}
}

// Get returns an endpoint visible to owner, refreshing it while it deploys
func (s *ModelEndpointService) Get(ctx context.Context, owner, name string) (*domain.ModelEndpoint, error) {
	endpoint, err := s.repo.GetByName(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	if !endpoint.NeedsSync() {
		return endpoint, nil
	}

	synced, err := s.Sync(ctx, endpoint)
	if err != nil {
		log.WithError(err).WithField("endpoint_id", endpoint.ID).Warn("sync model endpoint failed")
		return endpoint, nil
	}
	return synced, nil
}

// GetReady resolves an endpoint that can serve completions
func (s *ModelEndpointService) GetReady(ctx context.Context, owner, name string) (*domain.ModelEndpoint, error) {
	endpoint, err := s.Get(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	if !endpoint.IsReady() {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrModelEndpointNotReady, endpoint.Name, endpoint.Status)
	}
	return endpoint, nil
}

// Sync pulls deployment status from KServe
func (s *ModelEndpointService) Sync(ctx context.Context, endpoint *domain.ModelEndpoint) (*domain.ModelEndpoint, error) {
	if s.serving == nil || !s.serving.IsAvailable() || endpoint.ExternalID == "" {
		return endpoint, nil
	}

	status, err := s.serving.GetStatus(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	switch {
	case status.Ready:
		endpoint.MarkReady(status.URL)
	case status.Error != "":
		if endpoint.Status == domain.EndpointStatusUpdateFailed && endpoint.LastError == status.Error {
			return endpoint, nil
		}
		endpoint.MarkFailed(status.Error)
	default:
		return endpoint, nil
	}

	if err := s.repo.Update(ctx, endpoint); err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (s *ModelEndpointService) List(ctx context.Context, owner string, filter output.ModelEndpointFilter) ([]*domain.ModelEndpoint, int, error) {
	filter.Limit, filter.Offset = output.NormalizePage(filter.Limit, filter.Offset)
	filter.Owner = owner
	filter.IncludePublic = true
	return s.repo.List(ctx, filter)
}

func (s *ModelEndpointService) Delete(ctx context.Context, owner, name string) error {
	endpoint, err := s.repo.GetByName(ctx, owner, name)
	if err != nil {
		return err
	}
	if !endpoint.CanBeModifiedBy(owner) {
		return domain.ErrNotEndpointOwner
	}

	endpoint.MarkDeleting()
	if err := s.repo.Update(ctx, endpoint); err != nil {
		return err
	}

	if s.serving != nil && s.serving.IsAvailable() {
		// Ignore error - might already be deleted
		if err := s.serving.Undeploy(ctx, endpoint); err != nil {
			log.WithError(err).WithField("endpoint_id", endpoint.ID).Warn("undeploy model endpoint failed")
		}
	}

	return s.repo.Delete(ctx, endpoint.ID)
}

// ListBaseModels returns the catalog of models that can be served or fine-tuned
func (s *ModelEndpointService) ListBaseModels() []*domain.BaseModel {
	return s.catalog.List()
}

// IsServingAvailable checks if KServe integration is enabled
func (s *ModelEndpointService) IsServingAvailable() bool {
	return s.serving != nil && s.serving.IsAvailable()
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
