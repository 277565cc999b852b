package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scenario-service/internal/models"
	"scenario-service/internal/pipeline"
	"scenario-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	err error
	req pipeline.RunRequest
}

func (r *fakeRunner) RunBatch(ctx context.Context, req pipeline.RunRequest) (*pipeline.RunResult, error) {
	r.req = req
	res := &pipeline.RunResult{}
	for i := 1; i <= 2; i++ {
		rec := models.BatchRecord{
			BatchNumber: i,
			Attempt:     1,
			Generated:   5,
			Decision:    models.BatchAccepted,
			Approved:    5,
			Added:       4,
			CreatedAt:   time.Now().UTC(),
		}
		res.Batches = append(res.Batches, rec)
		res.TotalGenerated += rec.Generated
		res.TotalAdded += rec.Added
		req.Recorder.RecordBatch(ctx, rec)
		if r.err != nil {
			return res, r.err
		}
	}
	return res, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	jobs []models.Job
}

func (n *fakeNotifier) JobFinished(job *models.Job) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, *job)
}

func newTestService(t *testing.T, runner Runner, notifier Notifier) *JobService {
	t.Helper()
	db, err := repository.Open(repository.Config{
		Type: repository.TypeSQLite,
		Path: filepath.Join(t.TempDir(), "jobs.db"),
	}, zap.NewNop())
	require.NoError(t, err)

	repo := repository.NewJobRepository(db, zap.NewNop())
	t.Cleanup(func() { repo.Close() })

	return NewJobService(runner, repo, notifier, zap.NewNop())
}

func TestStartJobCompletes(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{}
	notifier := &fakeNotifier{}
	svc := newTestService(t, runner, notifier)

	id, err := svc.StartJob(ctx, models.RunRequest{Total: 10, BatchSize: 5, Context: "parents", MaxRetries: 2})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	svc.Wait()

	assert.Equal(t, 10, runner.req.Total)
	assert.Equal(t, "parents", runner.req.Context)
	assert.Equal(t, 2, runner.req.MaxRetries)

	job, err := svc.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 10, job.GeneratedCount)
	assert.Equal(t, 8, job.AddedCount)
	require.NotNil(t, job.CompletedAt)
	require.Len(t, job.Batches, 2)
	assert.Equal(t, id, job.Batches[0].JobID)

	require.Len(t, notifier.jobs, 1)
	assert.Equal(t, id, notifier.jobs[0].ID)

	jobs, err := svc.ListJobs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestStartJobRecordsFailure(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeRunner{err: errors.New("deduplication failed")}, nil)

	id, err := svc.StartJob(ctx, models.RunRequest{Total: 10})
	require.NoError(t, err)
	svc.Wait()

	job, err := svc.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, "deduplication failed", job.ErrorMessage)
	assert.Len(t, job.Batches, 1)
}

func TestStartJobValidatesTotal(t *testing.T) {
	svc := newTestService(t, &fakeRunner{}, nil)
	_, err := svc.StartJob(context.Background(), models.RunRequest{Total: 0})
	assert.Error(t, err)
}

func TestGetJobUnknown(t *testing.T) {
	svc := newTestService(t, &fakeRunner{}, nil)
	_, err := svc.GetJob(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestShutdownRejectsNewJobs(t *testing.T) {
	svc := newTestService(t, &fakeRunner{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	_, err := svc.StartJob(context.Background(), models.RunRequest{Total: 1})
	assert.ErrorIs(t, err, ErrShuttingDown)
}
