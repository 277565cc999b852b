package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"scenario-service/internal/models"
	"scenario-service/internal/pipeline"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrShuttingDown is returned when a job is submitted after Shutdown
var ErrShuttingDown = errors.New("job service is shutting down")

// Runner executes a batch-mode generation run
type Runner interface {
	RunBatch(ctx context.Context, req pipeline.RunRequest) (*pipeline.RunResult, error)
}

// JobStore persists jobs and their batch records
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	UpdateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, limit int) ([]models.Job, error)
	SaveBatch(ctx context.Context, rec *models.BatchRecord) error
}

// Notifier is told about finished jobs
type Notifier interface {
	JobFinished(job *models.Job)
}

// JobService runs generation jobs asynchronously, one at a time
type JobService struct {
	runner   Runner
	repo     JobStore
	notifier Notifier
	logger   *zap.Logger

	// the pipeline shares one dataset file and one cache, so runs are serialised
	runMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewJobService creates a new job service. notifier may be nil.
func NewJobService(runner Runner, repo JobStore, notifier Notifier, logger *zap.Logger) *JobService {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobService{
		runner:   runner,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// StartJob records a pending job and runs it in the background
func (s *JobService) StartJob(ctx context.Context, req models.RunRequest) (string, error) {
	if req.Total <= 0 {
		return "", fmt.Errorf("total must be positive, got %d", req.Total)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrShuttingDown
	}

	job := &models.Job{
		ID:        uuid.New().String(),
		Status:    models.JobPending,
		Requested: req.Total,
		BatchSize: req.BatchSize,
		Context:   req.Context,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	s.wg.Add(1)
	go s.processJob(job, req)

	s.logger.Info("Generation job queued",
		zap.String("job_id", job.ID),
		zap.Int("total", req.Total))
	return job.ID, nil
}

func (s *JobService) processJob(job *models.Job, req models.RunRequest) {
	defer s.wg.Done()

	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx := s.baseCtx

	job.Status = models.JobProcessing
	if err := s.repo.UpdateJob(ctx, job); err != nil {
		s.logger.Error("Failed to update job", zap.String("job_id", job.ID), zap.Error(err))
	}

	result, err := s.runner.RunBatch(ctx, pipeline.RunRequest{
		Total:       req.Total,
		BatchSize:   req.BatchSize,
		Context:     req.Context,
		AutoApprove: req.AutoApprove,
		MaxRetries:  req.MaxRetries,
		Recorder:    s.recorder(job.ID),
	})

	if result != nil {
		job.GeneratedCount = result.TotalGenerated
		job.AddedCount = result.TotalAdded
		job.Batches = result.Batches
	}

	job.Status = models.JobCompleted
	if err != nil {
		job.Status = models.JobFailed
		job.ErrorMessage = err.Error()
	}
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	// the run context may already be cancelled during shutdown
	if err := s.repo.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("Failed to update job", zap.String("job_id", job.ID), zap.Error(err))
	}

	s.logger.Info("Generation job finished",
		zap.String("job_id", job.ID),
		zap.String("status", job.Status),
		zap.Int("generated", job.GeneratedCount),
		zap.Int("added", job.AddedCount))

	if s.notifier != nil {
		s.notifier.JobFinished(job)
	}
}

func (s *JobService) recorder(jobID string) pipeline.BatchRecorder {
	return pipeline.BatchRecorderFunc(func(ctx context.Context, rec models.BatchRecord) {
		rec.JobID = jobID
		if err := s.repo.SaveBatch(context.WithoutCancel(ctx), &rec); err != nil {
			s.logger.Error("Failed to save batch record",
				zap.String("job_id", jobID),
				zap.Int("batch", rec.BatchNumber),
				zap.Error(err))
		}
	})
}

// GetJob returns a job with its batch records
func (s *JobService) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return s.repo.GetJob(ctx, jobID)
}

// ListJobs returns recent jobs
func (s *JobService) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

// Wait blocks until every submitted job has finished
func (s *JobService) Wait() {
	s.wg.Wait()
}

// Shutdown stops accepting jobs, cancels running ones and waits for them
// until ctx expires.
func (s *JobService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
