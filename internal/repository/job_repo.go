package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"scenario-service/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrJobNotFound is returned when a job id is unknown
var ErrJobNotFound = errors.New("job not found")

// JobRepository stores generation jobs and their batch records
type JobRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewJobRepository creates a new repository
func NewJobRepository(db *sqlx.DB, logger *zap.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

// CreateJob creates a new generation job
func (r *JobRepository) CreateJob(ctx context.Context, job *models.Job) error {
	query := r.db.Rebind(`
		INSERT INTO jobs (id, status, requested, batch_size, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Status, job.Requested, job.BatchSize, job.Context, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// UpdateJob updates job progress
func (r *JobRepository) UpdateJob(ctx context.Context, job *models.Job) error {
	query := r.db.Rebind(`
		UPDATE jobs
		SET status = ?, generated_count = ?, added_count = ?, completed_at = ?, error_message = ?
		WHERE id = ?
	`)

	res, err := r.db.ExecContext(ctx, query,
		job.Status, job.GeneratedCount, job.AddedCount, job.CompletedAt, job.ErrorMessage, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// GetJob retrieves a job by ID together with its batch records
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	query := r.db.Rebind(`
		SELECT id, status, requested, batch_size, context, generated_count, added_count,
		       created_at, completed_at, error_message
		FROM jobs
		WHERE id = ?
	`)

	job := &models.Job{}
	err := r.db.GetContext(ctx, job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	batches, err := r.ListBatches(ctx, jobID)
	if err != nil {
		return nil, err
	}
	job.Batches = batches

	return job, nil
}

// ListJobs returns the most recent jobs, newest first
func (r *JobRepository) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	query := r.db.Rebind(`
		SELECT id, status, requested, batch_size, context, generated_count, added_count,
		       created_at, completed_at, error_message
		FROM jobs
		ORDER BY created_at DESC
		LIMIT ?
	`)

	jobs := []models.Job{}
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// SaveBatch stores one batch record and sets its ID
func (r *JobRepository) SaveBatch(ctx context.Context, rec *models.BatchRecord) error {
	query := r.db.Rebind(`
		INSERT INTO batches (
			job_id, batch_number, attempt, generated, sample_size, escalated,
			failure_rate, decision, approved, duplicates, added, feedback, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.QueryRowxContext(ctx, query,
		rec.JobID,
		rec.BatchNumber,
		rec.Attempt,
		rec.Generated,
		rec.SampleSize,
		rec.Escalated,
		rec.FailureRate,
		string(rec.Decision),
		rec.Approved,
		rec.Duplicates,
		rec.Added,
		rec.Feedback,
		rec.Error,
		rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

// ListBatches returns the batch records of a job in insertion order
func (r *JobRepository) ListBatches(ctx context.Context, jobID string) ([]models.BatchRecord, error) {
	query := r.db.Rebind(`
		SELECT id, job_id, batch_number, attempt, generated, sample_size, escalated,
		       failure_rate, decision, approved, duplicates, added, feedback, error_message, created_at
		FROM batches
		WHERE job_id = ?
		ORDER BY id
	`)

	batches := []models.BatchRecord{}
	if err := r.db.SelectContext(ctx, &batches, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	return batches, nil
}

// Close closes the database connection
func (r *JobRepository) Close() error {
	return r.db.Close()
}
