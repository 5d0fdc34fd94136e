package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"llm-engine-service/internal/adapters/secondary/queue"
	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
	"llm-engine-service/internal/core/services"
	"llm-engine-service/internal/testutil"
)

type deps struct {
	repo     *testutil.MockFineTuneRepo
	catalog  *testutil.MockCatalog
	training *testutil.MockTrainingOrchestrator
	queue    *queue.MemoryQueue
	svc      *services.FineTuneService
}

func newDeps() *deps {
	d := &deps{
		repo:     new(testutil.MockFineTuneRepo),
		catalog:  new(testutil.MockCatalog),
		training: new(testutil.MockTrainingOrchestrator),
		queue:    queue.NewMemoryQueue(8),
	}
	d.svc = services.NewFineTuneService(d.repo, d.catalog, nil, d.queue, d.training, nil, services.FineTuneOptions{MaxLaunchAttempts: 3})
	return d
}

func pendingFineTune(t *testing.T) *domain.FineTune {
	t.Helper()
	ft, err := domain.NewFineTune("alice", "llama-2-7b", "s3://bucket/train.csv", "", nil, "")
	require.NoError(t, err)
	return ft
}

func llama7b() *domain.BaseModel {
	return &domain.BaseModel{
		Name:          "llama-2-7b",
		FineTunable:   true,
		FineTuneImage: "registry.local/fine-tune",
		GPUs:          1,
	}
}

func runLauncher(t *testing.T, l *Launcher) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	return cancel, done
}

func waitStopped(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("launcher did not stop")
	}
}

func TestLauncher_LaunchesQueuedFineTune(t *testing.T) {
	d := newDeps()
	ft := pendingFineTune(t)

	launched := make(chan output.TrainingJobSpec, 1)
	d.repo.On("GetByIDAny", mock.Anything, ft.ID).Return(ft, nil)
	d.catalog.On("Get", "llama-2-7b").Return(llama7b(), nil)
	d.training.On("IsAvailable").Return(true)
	d.training.On("Launch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { launched <- args.Get(1).(output.TrainingJobSpec) }).
		Return(ft.ID, nil)
	d.repo.On("Update", mock.Anything, ft, domain.FineTuneStatusPending).Return(nil)

	cancel, done := runLauncher(t, NewLauncher(d.queue, d.svc, LauncherOptions{Concurrency: 2}))
	require.NoError(t, d.queue.Publish(context.Background(), ft.ID))

	select {
	case spec := <-launched:
		assert.Equal(t, ft.ID, spec.FineTune.ID)
		assert.Equal(t, "s3://llm-engine/fine-tunes/alice/"+ft.ID, spec.OutputLocation)
	case <-time.After(2 * time.Second):
		t.Fatal("fine-tune was not launched")
	}

	cancel()
	waitStopped(t, done)
	d.repo.AssertExpectations(t)
}

func TestLauncher_RetriesUntilAttemptsExhausted(t *testing.T) {
	d := newDeps()
	ft := pendingFineTune(t)

	failed := make(chan string, 1)
	d.repo.On("GetByIDAny", mock.Anything, ft.ID).Return(ft, nil)
	d.catalog.On("Get", "llama-2-7b").Return(llama7b(), nil)
	d.training.On("IsAvailable").Return(false)
	d.repo.On("Update", mock.Anything, ft, domain.FineTuneStatusPending).
		Run(func(args mock.Arguments) {
			updated := args.Get(1).(*domain.FineTune)
			if updated.Status == domain.FineTuneStatusFailure {
				failed <- updated.LastError
			}
		}).
		Return(nil)

	cancel, done := runLauncher(t, NewLauncher(d.queue, d.svc, LauncherOptions{RetryBackoff: 5 * time.Millisecond}))
	require.NoError(t, d.queue.Publish(context.Background(), ft.ID))

	select {
	case msg := <-failed:
		assert.Contains(t, msg, "after 3 attempts")
	case <-time.After(2 * time.Second):
		t.Fatal("fine-tune was not failed")
	}

	cancel()
	waitStopped(t, done)
	d.training.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything)
	d.repo.AssertNumberOfCalls(t, "Update", 3)
}

func TestLauncher_DropsUnknownFineTune(t *testing.T) {
	d := newDeps()

	seen := make(chan struct{}, 4)
	d.repo.On("GetByIDAny", mock.Anything, "ft-gone").
		Run(func(mock.Arguments) { seen <- struct{}{} }).
		Return(nil, domain.ErrFineTuneNotFound)

	cancel, done := runLauncher(t, NewLauncher(d.queue, d.svc, LauncherOptions{}))
	require.NoError(t, d.queue.Publish(context.Background(), "ft-gone"))

	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("fine-tune was not consumed")
	}
	// A redelivery would show up as a second lookup
	time.Sleep(50 * time.Millisecond)

	cancel()
	waitStopped(t, done)
	d.repo.AssertNumberOfCalls(t, "GetByIDAny", 1)
}

func TestReconciler_RequeuesThenReconciles(t *testing.T) {
	d := newDeps()
	ft := pendingFineTune(t)

	reconciled := make(chan struct{}, 16)
	d.repo.On("ListByStatus", mock.Anything, []domain.FineTuneStatus{domain.FineTuneStatusPending}, 100).
		Return([]*domain.FineTune{ft}, nil)
	d.repo.On("ListByStatus", mock.Anything, []domain.FineTuneStatus{domain.FineTuneStatusRunning}, 100).
		Run(func(mock.Arguments) { reconciled <- struct{}{} }).
		Return([]*domain.FineTune{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	r := NewReconciler(d.svc, ReconcilerOptions{Interval: 5 * time.Millisecond, RequeueAfter: time.Hour})
	go func() { done <- r.Run(ctx) }()

	select {
	case <-reconciled:
	case <-time.After(2 * time.Second):
		t.Fatal("reconcile did not run")
	}
	cancel()
	waitStopped(t, done)

	// The pending fine-tune went back on the queue
	qctx, qcancel := context.WithTimeout(context.Background(), time.Second)
	defer qcancel()
	got := make(chan string, 1)
	go func() {
		_ = d.queue.Consume(qctx, 1, func(_ context.Context, id string) error {
			got <- id
			qcancel()
			return nil
		})
	}()
	select {
	case id := <-got:
		assert.Equal(t, ft.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("pending fine-tune was not requeued")
	}
	// Only the startup pass republished the recently created row
	assert.Zero(t, d.queue.Len())
}

func TestReconciler_RequeuesStalePendingOnTick(t *testing.T) {
	d := newDeps()
	stale := pendingFineTune(t)
	stale.UpdatedAt = time.Now().Add(-time.Hour)

	d.repo.On("ListByStatus", mock.Anything, []domain.FineTuneStatus{domain.FineTuneStatusPending}, 100).
		Return([]*domain.FineTune{}, nil).Once()
	d.repo.On("ListByStatus", mock.Anything, []domain.FineTuneStatus{domain.FineTuneStatusPending}, 100).
		Return([]*domain.FineTune{stale}, nil)
	d.repo.On("ListByStatus", mock.Anything, []domain.FineTuneStatus{domain.FineTuneStatusRunning}, 100).
		Return([]*domain.FineTune{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	r := NewReconciler(d.svc, ReconcilerOptions{Interval: 10 * time.Millisecond, RequeueAfter: time.Minute})
	go func() { done <- r.Run(ctx) }()

	qctx, qcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer qcancel()
	got := make(chan string, 1)
	go func() {
		_ = d.queue.Consume(qctx, 1, func(_ context.Context, id string) error {
			select {
			case got <- id:
			default:
			}
			return nil
		})
	}()

	select {
	case id := <-got:
		assert.Equal(t, stale.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("stale pending fine-tune was not requeued")
	}
	cancel()
	waitStopped(t, done)
}

// flakyQueue fails the first Consume and blocks on later ones
type flakyQueue struct {
	*queue.MemoryQueue
	mu       sync.Mutex
	consumes int
	failures int
}

func (q *flakyQueue) Consume(ctx context.Context, workerCount int, handler output.QueueHandler) error {
	q.mu.Lock()
	q.consumes++
	fail := q.consumes <= q.failures
	q.mu.Unlock()
	if fail {
		return errors.New("redis consume: read tcp 10.0.0.7:6379: connection reset by peer")
	}
	return q.MemoryQueue.Consume(ctx, workerCount, handler)
}

func (q *flakyQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.consumes
}

func TestLauncher_RestartsAfterQueueError(t *testing.T) {
	d := newDeps()
	ft := pendingFineTune(t)
	q := &flakyQueue{MemoryQueue: d.queue, failures: 2}

	launched := make(chan struct{}, 1)
	d.repo.On("GetByIDAny", mock.Anything, ft.ID).Return(ft, nil)
	d.catalog.On("Get", "llama-2-7b").Return(llama7b(), nil)
	d.training.On("IsAvailable").Return(true)
	d.training.On("Launch", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { launched <- struct{}{} }).
		Return(ft.ID, nil)
	d.repo.On("Update", mock.Anything, ft, domain.FineTuneStatusPending).Return(nil)

	cancel, done := runLauncher(t, NewLauncher(q, d.svc, LauncherOptions{RestartBackoff: 5 * time.Millisecond}))
	require.NoError(t, q.Publish(context.Background(), ft.ID))

	select {
	case <-launched:
	case <-time.After(2 * time.Second):
		t.Fatal("launcher did not recover from queue errors")
	}
	assert.Equal(t, 3, q.count())

	cancel()
	waitStopped(t, done)
}

func TestLauncher_StopsWhenQueueClosed(t *testing.T) {
	d := newDeps()
	require.NoError(t, d.queue.Close())

	cancel, done := runLauncher(t, NewLauncher(d.queue, d.svc, LauncherOptions{}))
	defer cancel()
	waitStopped(t, done)
}
