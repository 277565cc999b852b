// Package pipeline runs generation, validation, deduplication and
// persistence as one loop.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scenario-service/internal/generation"
	"scenario-service/internal/models"
	"scenario-service/internal/validation"

	"go.uber.org/zap"
)

// Generator produces candidate scenarios.
type Generator interface {
	GenerateBatch(ctx context.Context, req generation.Request) []models.Scenario
}

// Validator decides whether a batch is accepted.
type Validator interface {
	ValidateBatch(ctx context.Context, scenarios []models.Scenario) models.BatchOutcome
}

// Deduplicator drops items already present in the embedding cache.
type Deduplicator interface {
	Filter(ctx context.Context, texts []string, records []models.Scenario) ([]string, []models.Scenario, error)
	Seed(ctx context.Context, texts []string) (int, error)
	Feedback() string
	Stats() models.SessionStatistics
}

// Dataset is the persistent store of accepted scenarios.
type Dataset interface {
	Append(rows []models.Scenario) (int, error)
	Inputs() ([]string, error)
	Stats() (models.DatasetStats, error)
	SuggestNeededPrinciples(target float64) ([]string, error)
}

// BatchRecorder receives one record per generation attempt.
type BatchRecorder interface {
	RecordBatch(ctx context.Context, rec models.BatchRecord)
}

// BatchRecorderFunc adapts a function to BatchRecorder.
type BatchRecorderFunc func(ctx context.Context, rec models.BatchRecord)

// RecordBatch calls f.
func (f BatchRecorderFunc) RecordBatch(ctx context.Context, rec models.BatchRecord) {
	f(ctx, rec)
}

// Config holds pipeline defaults.
type Config struct {
	BatchSize  int `yaml:"batch_size"`
	MaxRetries int `yaml:"max_retries"`
	// BalancePrinciples steers generation towards under-represented principles.
	BalancePrinciples bool `yaml:"balance_principles"`
}

// RunRequest describes a batch-mode run.
type RunRequest struct {
	Total       int
	BatchSize   int
	Context     string
	AutoApprove bool
	MaxRetries  int
	Recorder    BatchRecorder
}

// RunResult summarises a batch-mode run.
type RunResult struct {
	TotalGenerated    int                       `json:"total_generated"`
	TotalAdded        int                       `json:"total_added"`
	Batches           []models.BatchRecord      `json:"batches"`
	ValidationSummary *models.ValidationSummary `json:"validation_summary,omitempty"`
	DatasetStats      models.DatasetStats       `json:"final_dataset_stats"`
	DedupStats        models.SessionStatistics  `json:"deduplication_stats"`
}

// CycleResult is the outcome of one generate/validate/dedup/persist cycle.
type CycleResult struct {
	Record  models.BatchRecord  `json:"record"`
	Outcome models.BatchOutcome `json:"outcome"`
	Added   []models.Scenario   `json:"added"`
}

// Pipeline wires the stages together.
type Pipeline struct {
	generator Generator
	validator Validator
	dedup     Deduplicator
	dataset   Dataset
	cfg       Config
	logger    *zap.Logger
}

// New creates a pipeline.
func New(gen Generator, val Validator, dedup Deduplicator, ds Dataset, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 75
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Pipeline{
		generator: gen,
		validator: val,
		dedup:     dedup,
		dataset:   ds,
		cfg:       cfg,
		logger:    logger,
	}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// SyncCache loads the dataset inputs into the embedding cache so scenarios
// persisted before the cache existed still count as duplicates.
func (p *Pipeline) SyncCache(ctx context.Context) (int, error) {
	inputs, err := p.dataset.Inputs()
	if err != nil {
		return 0, fmt.Errorf("failed to read dataset inputs: %w", err)
	}
	if len(inputs) == 0 {
		p.logger.Info("No existing scenarios found in dataset")
		return 0, nil
	}

	added, err := p.dedup.Seed(ctx, inputs)
	if err != nil {
		return 0, fmt.Errorf("failed to seed deduplication cache: %w", err)
	}

	p.logger.Info("Deduplication cache synchronised with dataset",
		zap.Int("dataset_rows", len(inputs)),
		zap.Int("newly_cached", added))
	return added, nil
}

// RunBatch generates req.Total scenarios in ceiling(Total/BatchSize) batches.
// A batch that adds nothing is retried up to MaxRetries times, each retry
// carrying the latest validation and duplication feedback.
func (p *Pipeline) RunBatch(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Total <= 0 {
		return nil, fmt.Errorf("total must be positive, got %d", req.Total)
	}
	if req.BatchSize <= 0 {
		req.BatchSize = p.cfg.BatchSize
	}
	if req.MaxRetries <= 0 {
		req.MaxRetries = p.cfg.MaxRetries
	}

	batches := (req.Total + req.BatchSize - 1) / req.BatchSize
	p.logger.Info("Running batch mode",
		zap.Int("total", req.Total),
		zap.Int("batch_size", req.BatchSize),
		zap.Int("batches", batches),
		zap.Bool("auto_approve", req.AutoApprove))

	result := &RunResult{Batches: []models.BatchRecord{}}
	var reports []models.ValidationReport
	feedback := ""

	for i := 0; i < batches; i++ {
		size := min(req.BatchSize, req.Total-i*req.BatchSize)

		for attempt := 1; attempt <= req.MaxRetries; attempt++ {
			if err := ctx.Err(); err != nil {
				p.finish(result, reports)
				return result, err
			}

			cycle, err := p.cycle(ctx, size, withFeedback(req.Context, feedback), req.AutoApprove)
			if cycle != nil {
				cycle.Record.BatchNumber = i + 1
				cycle.Record.Attempt = attempt
				result.Batches = append(result.Batches, cycle.Record)
				result.TotalGenerated += cycle.Record.Generated
				result.TotalAdded += cycle.Record.Added
				reports = append(reports, cycle.Outcome.Reports...)
				if req.Recorder != nil {
					req.Recorder.RecordBatch(ctx, cycle.Record)
				}
				feedback = p.nextFeedback(cycle.Outcome)
			}
			if err != nil {
				p.finish(result, reports)
				return result, err
			}

			if cycle.Record.Added > 0 {
				p.logger.Info("Batch added scenarios",
					zap.Int("batch", i+1),
					zap.Int("attempt", attempt),
					zap.Int("added", cycle.Record.Added))
				break
			}

			p.logger.Warn("Batch added nothing",
				zap.Int("batch", i+1),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", req.MaxRetries))
		}
	}

	p.finish(result, reports)
	p.logger.Info("Batch mode completed",
		zap.Int("generated", result.TotalGenerated),
		zap.Int("added", result.TotalAdded))
	return result, nil
}

// RunOnce runs a single cycle with the configured validation.
func (p *Pipeline) RunOnce(ctx context.Context, batchSize int, userContext string) (*CycleResult, error) {
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}
	cycle, err := p.cycle(ctx, batchSize, userContext, false)
	if cycle != nil {
		cycle.Record.BatchNumber = 1
		cycle.Record.Attempt = 1
	}
	return cycle, err
}

// DatasetStats returns statistics of the persisted dataset.
func (p *Pipeline) DatasetStats() (models.DatasetStats, error) {
	return p.dataset.Stats()
}

// DedupStats returns the session deduplication counters.
func (p *Pipeline) DedupStats() models.SessionStatistics {
	return p.dedup.Stats()
}

func (p *Pipeline) cycle(ctx context.Context, size int, userContext string, autoApprove bool) (*CycleResult, error) {
	req := generation.Request{BatchSize: size, Context: userContext}
	if p.cfg.BalancePrinciples {
		needed, err := p.dataset.SuggestNeededPrinciples(0)
		if err != nil {
			p.logger.Warn("Could not compute principle balance", zap.Error(err))
		} else {
			req.FocusPrinciples = needed
		}
	}

	res := &CycleResult{
		Record: models.BatchRecord{CreatedAt: time.Now().UTC()},
		Added:  []models.Scenario{},
	}

	scenarios := p.generator.GenerateBatch(ctx, req)
	res.Record.Generated = len(scenarios)
	if len(scenarios) == 0 {
		p.logger.Warn("No scenarios generated", zap.Int("requested", size))
		res.Outcome = models.BatchOutcome{Decision: models.BatchRejected, Approved: []models.Scenario{}}
		res.Record.Decision = models.BatchRejected
		return res, nil
	}

	if autoApprove {
		res.Outcome = models.BatchOutcome{
			Decision:  models.BatchAccepted,
			BatchSize: len(scenarios),
			Approved:  scenarios,
		}
	} else {
		res.Outcome = p.validator.ValidateBatch(ctx, scenarios)
	}

	res.Record.SampleSize = res.Outcome.SampleSize
	res.Record.Escalated = res.Outcome.Escalated
	res.Record.FailureRate = res.Outcome.FailureRate
	res.Record.Decision = res.Outcome.Decision
	res.Record.Approved = len(res.Outcome.Approved)
	res.Record.Feedback = res.Outcome.Feedback

	if len(res.Outcome.Approved) == 0 {
		p.logger.Warn("No scenarios passed validation")
		return res, nil
	}

	_, unique, err := p.dedup.Filter(ctx, models.Inputs(res.Outcome.Approved), res.Outcome.Approved)
	if err != nil {
		p.logger.Warn("Deduplication failed, batch not added", zap.Error(err))
		res.Record.Error = fmt.Sprintf("deduplication failed: %v", err)
		return res, nil
	}
	res.Record.Duplicates = len(res.Outcome.Approved) - len(unique)

	if len(unique) == 0 {
		p.logger.Info("No unique rows to add, all were semantic duplicates")
		return res, nil
	}

	added, err := p.dataset.Append(unique)
	if err != nil {
		return res, fmt.Errorf("failed to append to dataset: %w", err)
	}
	res.Record.Added = added
	res.Added = unique

	return res, nil
}

func (p *Pipeline) nextFeedback(outcome models.BatchOutcome) string {
	var parts []string
	if outcome.Feedback != "" {
		parts = append(parts, outcome.Feedback)
	}
	if guidance := p.dedup.Feedback(); guidance != "" {
		parts = append(parts, guidance)
	}
	return strings.Join(parts, "\n\n")
}

func (p *Pipeline) finish(result *RunResult, reports []models.ValidationReport) {
	if len(reports) > 0 {
		summary := validation.Summarize(reports)
		result.ValidationSummary = &summary
	}
	result.DedupStats = p.dedup.Stats()

	stats, err := p.dataset.Stats()
	if err != nil {
		p.logger.Error("Error getting dataset stats", zap.Error(err))
		return
	}
	result.DatasetStats = stats
}

func withFeedback(userContext, feedback string) string {
	switch {
	case feedback == "":
		return userContext
	case userContext == "":
		return feedback
	default:
		return userContext + "\n\n" + feedback
	}
}
