package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

// FineTuneOptions tunes launch and reconciliation behavior
type FineTuneOptions struct {
	MaxLaunchAttempts int
	OutputPrefix      string // e.g. s3://llm-engine/fine-tunes
	ReconcileBatch    int
}

type FineTuneService struct {
	repo      output.FineTuneRepository
	catalog   output.BaseModelCatalog
	datasets  output.DatasetValidator
	queue     output.JobQueue
	training  output.TrainingOrchestrator
	endpoints *ModelEndpointService
	opts      FineTuneOptions
}

func NewFineTuneService(
	repo output.FineTuneRepository,
	catalog output.BaseModelCatalog,
	datasets output.DatasetValidator,
	queue output.JobQueue,
	training output.TrainingOrchestrator,
	endpoints *ModelEndpointService,
	opts FineTuneOptions,
) *FineTuneService {
	if opts.MaxLaunchAttempts <= 0 {
		opts.MaxLaunchAttempts = 3
	}
	if opts.ReconcileBatch <= 0 {
		opts.ReconcileBatch = 100
	}
	return &FineTuneService{
		repo:      repo,
		catalog:   catalog,
		datasets:  datasets,
		queue:     queue,
		training:  training,
		endpoints: endpoints,
		opts:      opts,
	}
}

type CreateFineTuneInput struct {
	Model           string
	TrainingFile    string
	ValidationFile  string
	Hyperparameters map[string]any
	Suffix          string
}

func (s *FineTuneService) Create(ctx context.Context, owner string, in CreateFineTuneInput) (*domain.FineTune, error) {
	ft, err := domain.NewFineTune(owner, in.Model, in.TrainingFile, in.ValidationFile, in.Hyperparameters, in.Suffix)
	if err != nil {
		return nil, err
	}

	// 1. Base model must be fine-tunable
	base, err := s.catalog.Get(in.Model)
	if err != nil {
		return nil, err
	}
	if !base.FineTunable {
		return nil, domain.ErrBaseModelNotFineTunable
	}

	// 2. Hyperparameters are merged over the catalog defaults
	ft.Hyperparameters, err = base.ResolveHyperparameters(in.Hyperparameters)
	if err != nil {
		return nil, err
	}

	// 3. Dataset locations
	if err := s.validateDataset(ctx, in.TrainingFile); err != nil {
		return nil, err
	}
	if in.ValidationFile != "" {
		if err := s.validateDataset(ctx, in.ValidationFile); err != nil {
			return nil, err
		}
	}

	// 4. Persist, then hand off to the launcher
	if err := s.repo.Create(ctx, ft); err != nil {
		return nil, err
	}

	if err := s.queue.Publish(ctx, ft.ID); err != nil {
		log.WithError(err).WithField("fine_tune_id", ft.ID).Error("enqueue fine-tune failed")
		if markErr := ft.MarkFailed(fmt.Sprintf("enqueue: %v", err)); markErr == nil {
			if updErr := s.repo.Update(ctx, ft, domain.FineTuneStatusPending); updErr != nil {
				log.WithError(updErr).WithField("fine_tune_id", ft.ID).Error("record enqueue failure")
			}
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}

	log.WithFields(log.Fields{
		"fine_tune_id": ft.ID,
		"owner":        owner,
		"base_model":   ft.BaseModel,
	}).Info("fine-tune queued")

	return ft, nil
}

func (s *FineTuneService) validateDataset(ctx context.Context, location string) error {
	if err := domain.ValidateFileLocation(location); err != nil {
		return err
	}
	if s.datasets == nil {
		return nil
	}
	summary, err := s.datasets.Validate(ctx, location)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"location": location,
		"rows":     summary.Rows,
		"fetched":  summary.Fetched,
	}).Debug("dataset validated")
	return nil
}

// Get returns a fine-tune, refreshing RUNNING jobs from the cluster first
func (s *FineTuneService) Get(ctx context.Context, owner, id string) (*domain.FineTune, error) {
	ft, err := s.repo.GetByID(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if ft.Status != domain.FineTuneStatusRunning {
		return ft, nil
	}

	synced, err := s.Sync(ctx, ft)
	if err != nil {
		log.WithError(err).WithField("fine_tune_id", id).Warn("sync fine-tune status failed")
		return ft, nil
	}
	return synced, nil
}

func (s *FineTuneService) List(ctx context.Context, owner string, filter output.FineTuneFilter) ([]*domain.FineTune, int, error) {
	filter.Limit, filter.Offset = output.NormalizePage(filter.Limit, filter.Offset)
	filter.Owner = owner
	return s.repo.List(ctx, filter)
}

// Launch submits the training Job of a pending fine-tune. A returned error
// asks the queue to redeliver the ID.
func (s *FineTuneService) Launch(ctx context.Context, id string) error {
	ft, err := s.repo.GetByIDAny(ctx, id)
	if err != nil {
		return err
	}

	logger := log.WithFields(log.Fields{"fine_tune_id": ft.ID, "attempt": ft.Attempts + 1})

	if ft.Status != domain.FineTuneStatusPending {
		logger.WithField("status", ft.Status).Debug("skip launch of non-pending fine-tune")
		return nil
	}

	base, err := s.catalog.Get(ft.BaseModel)
	if err != nil {
		return s.failLaunch(ctx, ft, fmt.Sprintf("resolve base model: %v", err))
	}

	if s.training == nil || !s.training.IsAvailable() {
		return s.retryLaunch(ctx, ft, domain.ErrOrchestratorUnavailable)
	}

	jobName, err := s.training.Launch(ctx, output.TrainingJobSpec{
		FineTune:       ft,
		BaseModel:      base,
		OutputLocation: s.outputLocation(ft),
	})
	if err != nil {
		return s.retryLaunch(ctx, ft, err)
	}

	if err := ft.MarkRunning(jobName); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, ft, domain.FineTuneStatusPending); err != nil {
		if errors.Is(err, domain.ErrFineTuneStatusConflict) {
			s.resolveLaunchConflict(ctx, ft.ID, jobName)
			return nil
		}
		return err
	}

	logger.WithField("job", jobName).Info("fine-tune launched")
	return nil
}

func (s *FineTuneService) retryLaunch(ctx context.Context, ft *domain.FineTune, cause error) error {
	ft.RecordLaunchError(cause.Error())
	if ft.Attempts >= s.opts.MaxLaunchAttempts {
		return s.failLaunch(ctx, ft, fmt.Sprintf("launch failed after %d attempts: %v", ft.Attempts, cause))
	}
	if err := s.repo.Update(ctx, ft, domain.FineTuneStatusPending); err != nil {
		if errors.Is(err, domain.ErrFineTuneStatusConflict) {
			return nil
		}
		return err
	}
	return fmt.Errorf("launch fine-tune %s: %w", ft.ID, cause)
}

func (s *FineTuneService) failLaunch(ctx context.Context, ft *domain.FineTune, msg string) error {
	log.WithField("fine_tune_id", ft.ID).Error(msg)
	if err := ft.MarkFailed(msg); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, ft, domain.FineTuneStatusPending); err != nil && !errors.Is(err, domain.ErrFineTuneStatusConflict) {
		return err
	}
	return nil
}

// resolveLaunchConflict runs when the row left PENDING while the Job was
// being created. Only a cancellation requires removing the Job again.
func (s *FineTuneService) resolveLaunchConflict(ctx context.Context, id, jobName string) {
	current, err := s.repo.GetByIDAny(ctx, id)
	if err != nil {
		log.WithError(err).WithField("fine_tune_id", id).Warn("reload fine-tune after launch conflict")
		return
	}
	if current.Status != domain.FineTuneStatusCancelled {
		return
	}
	if err := s.training.Cancel(ctx, jobName); err != nil {
		log.WithError(err).WithField("fine_tune_id", id).Warn("remove job of cancelled fine-tune")
	}
}

func (s *FineTuneService) outputLocation(ft *domain.FineTune) string {
	prefix := strings.TrimRight(s.opts.OutputPrefix, "/")
	if prefix == "" {
		prefix = "s3://llm-engine/fine-tunes"
	}
	return fmt.Sprintf("%s/%s/%s", prefix, ft.Owner, ft.ID)
}

// Sync refreshes a RUNNING fine-tune from its training Job and registers the
// resulting model once the Job succeeds.
func (s *FineTuneService) Sync(ctx context.Context, ft *domain.FineTune) (*domain.FineTune, error) {
	if ft.Status != domain.FineTuneStatusRunning || !ft.IsLaunched() {
		return ft, nil
	}
	if s.training == nil || !s.training.IsAvailable() {
		return ft, nil
	}

	status, err := s.training.GetStatus(ctx, ft.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("get training job status: %w", err)
	}

	switch status.State {
	case output.TrainingJobSucceeded:
		err = ft.MarkSucceeded()
	case output.TrainingJobFailed:
		msg := status.Message
		if msg == "" {
			msg = "training job failed"
		}
		err = ft.MarkFailed(msg)
	case output.TrainingJobMissing:
		err = ft.MarkFailed("training job no longer exists")
	default:
		return ft, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, ft, domain.FineTuneStatusRunning); err != nil {
		if errors.Is(err, domain.ErrFineTuneStatusConflict) {
			return s.repo.GetByIDAny(ctx, ft.ID)
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"fine_tune_id":     ft.ID,
		"status":           ft.Status,
		"fine_tuned_model": ft.FineTunedModel,
	}).Info("fine-tune finished")

	if ft.NeedsRegistration() {
		if err := s.registerFineTunedModel(ctx, ft); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"fine_tune_id":     ft.ID,
				"fine_tuned_model": ft.FineTunedModel,
			}).Warn("register fine-tuned model failed, will retry")
		}
	}
	return ft, nil
}

// registerFineTunedModel creates the endpoint serving a successful fine-tune
// and records it on the row. A name conflict with an endpoint created from the
// same fine-tune counts as registered.
func (s *FineTuneService) registerFineTunedModel(ctx context.Context, ft *domain.FineTune) error {
	if s.endpoints == nil {
		return nil
	}
	_, err := s.endpoints.Create(ctx, ft.Owner, CreateModelEndpointInput{
		Name:           ft.FineTunedModel,
		ModelName:      ft.BaseModel,
		CheckpointPath: s.outputLocation(ft),
		FineTuneID:     ft.ID,
	})
	if errors.Is(err, domain.ErrModelEndpointNameConflict) {
		existing, getErr := s.endpoints.repo.GetByName(ctx, ft.Owner, ft.FineTunedModel)
		if getErr != nil {
			return getErr
		}
		if existing.FineTuneID != ft.ID {
			return err
		}
		err = nil
	}
	if err != nil {
		return err
	}

	ft.MarkModelRegistered()
	if err := s.repo.Update(ctx, ft, domain.FineTuneStatusSuccess); err != nil {
		return fmt.Errorf("record model registration: %w", err)
	}
	log.WithFields(log.Fields{
		"fine_tune_id":     ft.ID,
		"fine_tuned_model": ft.FineTunedModel,
	}).Info("fine-tuned model registered")
	return nil
}

// Cancel stops a fine-tune that has not finished
func (s *FineTuneService) Cancel(ctx context.Context, owner, id string) error {
	ft, err := s.repo.GetByID(ctx, owner, id)
	if err != nil {
		return err
	}

	previous := ft.Status
	if err := ft.Cancel(); err != nil {
		return err
	}

	if ft.IsLaunched() && s.training != nil && s.training.IsAvailable() {
		// Ignore error - the Job might already be gone
		if err := s.training.Cancel(ctx, ft.ExternalID); err != nil {
			log.WithError(err).WithField("fine_tune_id", id).Warn("delete training job failed")
		}
	}

	if err := s.repo.Update(ctx, ft, previous); err != nil {
		if errors.Is(err, domain.ErrFineTuneStatusConflict) {
			return domain.ErrFineTuneTerminal
		}
		return err
	}

	log.WithField("fine_tune_id", id).Info("fine-tune cancelled")
	return nil
}

// Reconcile syncs every RUNNING fine-tune, retries model registration for
// finished ones and returns how many finished
func (s *FineTuneService) Reconcile(ctx context.Context) (int, error) {
	running, err := s.repo.ListByStatus(ctx, []domain.FineTuneStatus{domain.FineTuneStatusRunning}, s.opts.ReconcileBatch)
	if err != nil {
		return 0, err
	}

	finished := 0
	for _, ft := range running {
		if ctx.Err() != nil {
			return finished, ctx.Err()
		}
		synced, err := s.Sync(ctx, ft)
		if err != nil {
			log.WithError(err).WithField("fine_tune_id", ft.ID).Warn("reconcile fine-tune failed")
			continue
		}
		if synced.Status.IsTerminal() {
			finished++
		}
	}

	if s.endpoints == nil {
		return finished, nil
	}
	unregistered, err := s.repo.ListUnregistered(ctx, s.opts.ReconcileBatch)
	if err != nil {
		return finished, err
	}
	for _, ft := range unregistered {
		if ctx.Err() != nil {
			return finished, ctx.Err()
		}
		if err := s.registerFineTunedModel(ctx, ft); err != nil {
			log.WithError(err).WithField("fine_tune_id", ft.ID).Warn("register fine-tuned model failed")
		}
	}
	return finished, nil
}

// Requeue republishes PENDING fine-tunes untouched for at least olderThan,
// whose queue message may have been lost
func (s *FineTuneService) Requeue(ctx context.Context, olderThan time.Duration) (int, error) {
	pending, err := s.repo.ListByStatus(ctx, []domain.FineTuneStatus{domain.FineTuneStatusPending}, s.opts.ReconcileBatch)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, ft := range pending {
		if time.Since(ft.UpdatedAt) < olderThan {
			continue
		}
		if err := s.queue.Publish(ctx, ft.ID); err != nil {
			return published, fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
		}
		published++
	}
	return published, nil
}
