package models

import "time"

// Job statuses
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// RunRequest asks the pipeline for a number of new scenarios
type RunRequest struct {
	Total       int    `json:"total" binding:"required,min=1"`
	BatchSize   int    `json:"batch_size,omitempty"`
	Context     string `json:"context,omitempty"`
	AutoApprove bool   `json:"auto_approve,omitempty"`
	MaxRetries  int    `json:"max_retries,omitempty"`
}

// Job represents an async generation run
type Job struct {
	ID             string        `json:"id" db:"id"`
	Status         string        `json:"status" db:"status"`
	Requested      int           `json:"requested" db:"requested"`
	BatchSize      int           `json:"batch_size" db:"batch_size"`
	Context        string        `json:"context,omitempty" db:"context"`
	GeneratedCount int           `json:"generated_count" db:"generated_count"`
	AddedCount     int           `json:"added_count" db:"added_count"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage   string        `json:"error_message,omitempty" db:"error_message"`
	Batches        []BatchRecord `json:"batches,omitempty" db:"-"`
}

// BatchRecord is the persisted trace of one generation/validation/dedup cycle
type BatchRecord struct {
	ID          int64         `json:"id" db:"id"`
	JobID       string        `json:"job_id" db:"job_id"`
	BatchNumber int           `json:"batch_number" db:"batch_number"`
	Attempt     int           `json:"attempt" db:"attempt"`
	Generated   int           `json:"generated" db:"generated"`
	SampleSize  int           `json:"sample_size" db:"sample_size"`
	Escalated   bool          `json:"escalated" db:"escalated"`
	FailureRate float64       `json:"failure_rate" db:"failure_rate"`
	Decision    BatchDecision `json:"decision" db:"decision"`
	Approved    int           `json:"approved" db:"approved"`
	Duplicates  int           `json:"duplicates" db:"duplicates"`
	Added       int           `json:"added" db:"added"`
	Feedback    string        `json:"feedback,omitempty" db:"feedback"`
	Error       string        `json:"error,omitempty" db:"error_message"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}
