package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"scenario-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRepo(t *testing.T) *JobRepository {
	t.Helper()

	db, err := Open(Config{Type: TypeSQLite, Path: filepath.Join(t.TempDir(), "db", "jobs.db")}, zap.NewNop())
	require.NoError(t, err)

	repo := NewJobRepository(db, zap.NewNop())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job := &models.Job{
		ID:        uuid.New().String(),
		Status:    models.JobPending,
		Requested: 150,
		BatchSize: 75,
		Context:   "focus on elderly users",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateJob(ctx, job))

	got, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, got.Status)
	assert.Equal(t, 150, got.Requested)
	assert.Equal(t, "focus on elderly users", got.Context)
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.Batches)

	rec := &models.BatchRecord{
		JobID:       job.ID,
		BatchNumber: 1,
		Attempt:     1,
		Generated:   75,
		SampleSize:  15,
		Escalated:   true,
		FailureRate: 36.7,
		Decision:    models.BatchAccepted,
		Approved:    75,
		Duplicates:  5,
		Added:       70,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.SaveBatch(ctx, rec))
	assert.NotZero(t, rec.ID)

	done := time.Now().UTC()
	job.Status = models.JobCompleted
	job.GeneratedCount = 75
	job.AddedCount = 70
	job.CompletedAt = &done
	require.NoError(t, repo.UpdateJob(ctx, job))

	got, err = repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, got.Status)
	assert.Equal(t, 70, got.AddedCount)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, done, *got.CompletedAt, time.Second)

	require.Len(t, got.Batches, 1)
	b := got.Batches[0]
	assert.Equal(t, rec.ID, b.ID)
	assert.True(t, b.Escalated)
	assert.Equal(t, models.BatchAccepted, b.Decision)
	assert.InDelta(t, 36.7, b.FailureRate, 1e-9)
	assert.Equal(t, 5, b.Duplicates)
}

func TestGetJobNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	err = repo.UpdateJob(context.Background(), &models.Job{ID: "missing", Status: models.JobFailed})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestListJobsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.CreateJob(ctx, &models.Job{
			ID:        id,
			Status:    models.JobPending,
			Requested: 10,
			BatchSize: 10,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	jobs, err := repo.ListJobs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
}

func TestMigrateIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")

	db, err := Open(Config{Type: TypeSQLite, Path: path}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(Config{Type: TypeSQLite, Path: path}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestOpenUnsupportedType(t *testing.T) {
	_, err := Open(Config{Type: "mysql", Path: "x"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSaveBatchKeepsFaultText(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job := &models.Job{ID: uuid.New().String(), Status: models.JobRunning, Requested: 10, BatchSize: 10, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateJob(ctx, job))

	require.NoError(t, repo.SaveBatch(ctx, &models.BatchRecord{
		JobID:       job.ID,
		BatchNumber: 1,
		Attempt:     1,
		Generated:   10,
		Decision:    models.BatchAccepted,
		Approved:    10,
		Error:       "embedding request failed",
		CreatedAt:   time.Now().UTC(),
	}))

	batches, err := repo.ListBatches(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "embedding request failed", batches[0].Error)
	assert.Zero(t, batches[0].Added)
}
