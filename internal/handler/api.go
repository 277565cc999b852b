package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"scenario-service/internal/dedup"
	"scenario-service/internal/models"
	"scenario-service/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JobService starts and reports generation jobs
type JobService interface {
	StartJob(ctx context.Context, req models.RunRequest) (string, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, limit int) ([]models.Job, error)
}

// Dataset is the read side of the scenario dataset
type Dataset interface {
	ReadAll() ([]models.Scenario, error)
	Stats() (models.DatasetStats, error)
	Sample(n int) ([]models.Scenario, error)
	PrincipleBalance() (map[string]float64, error)
	WriteCSV(w io.Writer) error
}

// Deduplicator exposes cache inspection and tuning
type Deduplicator interface {
	Stats() models.SessionStatistics
	CacheInfo() dedup.CacheInfo
	FeedbackReport() dedup.FeedbackReport
	AdjustThreshold(threshold float64) error
	Clear() error
	FindDuplicates(ctx context.Context, texts []string) ([]dedup.Duplicate, error)
}

// Validator judges a batch synchronously
type Validator interface {
	ValidateBatch(ctx context.Context, scenarios []models.Scenario) models.BatchOutcome
}

// ValidateRequest is the body of POST /validate
type ValidateRequest struct {
	Scenarios []models.Scenario `json:"scenarios" binding:"required,min=1,dive"`
}

// ThresholdRequest is the body of PUT /dedup/threshold
type ThresholdRequest struct {
	Threshold float64 `json:"threshold" binding:"required"`
}

// CheckRequest is the body of POST /dedup/check
type CheckRequest struct {
	Texts []string `json:"texts" binding:"required,min=1"`
}

// Handler handles HTTP requests
type Handler struct {
	jobs      JobService
	dataset   Dataset
	dedup     Deduplicator
	validator Validator
	logger    *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(jobs JobService, ds Dataset, dd Deduplicator, validator Validator, logger *zap.Logger) *Handler {
	return &Handler{
		jobs:      jobs,
		dataset:   ds,
		dedup:     dd,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes registers all API routes. auth, when non-nil, guards /api/v1.
func (h *Handler) RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	api := r.Group("/api/v1")
	if auth != nil {
		api.Use(auth)
	}
	{
		// Generation jobs
		api.POST("/jobs", h.StartJob)
		api.GET("/jobs", h.ListJobs)
		api.GET("/jobs/:id", h.GetJob)

		// Dataset
		api.GET("/dataset/stats", h.GetDatasetStats)
		api.GET("/dataset/sample", h.GetSample)

		// Export
		api.GET("/export/csv", h.ExportCSV)
		api.GET("/export/json", h.ExportJSON)

		// Deduplication
		api.GET("/dedup/stats", h.GetDedupStats)
		api.PUT("/dedup/threshold", h.SetThreshold)
		api.DELETE("/dedup/cache", h.ClearCache)
		api.POST("/dedup/check", h.CheckDuplicates)

		// Validation
		api.POST("/validate", h.Validate)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

// StartJob queues a batch-mode generation run
func (h *Handler) StartJob(c *gin.Context) {
	var req models.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.jobs.StartJob(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Failed to start job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"status":  models.JobPending,
		"message": "Generation started. Check /api/v1/jobs/" + jobID + " for status",
	})
}

// GetJob returns job status with its batch records
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.GetJob(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs returns recent jobs
func (h *Handler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	jobs, err := h.jobs.ListJobs(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// GetDatasetStats returns dataset distributions and principle balance
func (h *Handler) GetDatasetStats(c *gin.Context) {
	stats, err := h.dataset.Stats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	balance, err := h.dataset.PrincipleBalance()
	if err != nil {
		h.logger.Error("Failed to get principle balance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_rows":             stats.TotalRows,
		"principle_distribution": stats.PrincipleDistribution,
		"category_distribution":  stats.CategoryDistribution,
		"severity_distribution":  stats.SeverityDistribution,
		"principle_balance":      balance,
		"deduplication_stats":    h.dedup.CacheInfo(),
	})
}

// GetSample returns the most recent rows
func (h *Handler) GetSample(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", "3"))
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
		return
	}

	rows, err := h.dataset.Sample(n)
	if err != nil {
		h.logger.Error("Failed to get sample rows", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get sample"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"scenarios": rows, "total": len(rows)})
}

// ExportCSV streams the dataset as CSV
func (h *Handler) ExportCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=dataset.csv")

	if err := h.dataset.WriteCSV(c.Writer); err != nil {
		h.logger.Error("Failed to export CSV", zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}

// ExportJSON exports the dataset as JSON
func (h *Handler) ExportJSON(c *gin.Context) {
	rows, err := h.dataset.ReadAll()
	if err != nil {
		h.logger.Error("Failed to export JSON", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", "attachment; filename=dataset.json")

	encoder := json.NewEncoder(c.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rows); err != nil {
		h.logger.Error("Failed to encode JSON export", zap.Error(err))
	}
}

// GetDedupStats returns session counters, cache state and guidance
func (h *Handler) GetDedupStats(c *gin.Context) {
	stats := h.dedup.Stats()
	c.JSON(http.StatusOK, gin.H{
		"total_processed":  stats.TotalProcessed,
		"total_duplicates": stats.TotalDuplicates,
		"duplicate_rate":   stats.DuplicateRate(),
		"cache":            h.dedup.CacheInfo(),
		"feedback":         h.dedup.FeedbackReport(),
	})
}

// SetThreshold adjusts the similarity threshold
func (h *Handler) SetThreshold(c *gin.Context) {
	var req ThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.dedup.AdjustThreshold(req.Threshold); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"similarity_threshold": req.Threshold})
}

// ClearCache empties the embedding cache
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.dedup.Clear(); err != nil {
		h.logger.Error("Failed to clear cache", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// CheckDuplicates reports which texts the cache already holds, without
// changing it
func (h *Handler) CheckDuplicates(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dups, err := h.dedup.FindDuplicates(c.Request.Context(), req.Texts)
	if err != nil {
		h.logger.Error("Failed to check duplicates", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "embedding service failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"duplicates": dups, "total": len(dups)})
}

// Validate runs the sampling validator on the given scenarios
func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome := h.validator.ValidateBatch(c.Request.Context(), req.Scenarios)
	c.JSON(http.StatusOK, outcome)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "scenario-service",
		"version": "1.0.0",
	})
}
