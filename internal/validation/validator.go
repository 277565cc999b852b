// Package validation judges generated scenarios and decides whether a batch
// is admitted, using sampling with one escalation step and a salvage pass.
package validation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"scenario-service/internal/models"

	"go.uber.org/zap"
)

// Judge scores a single scenario. The LLM failover client satisfies it.
type Judge interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
}

// Config holds the sampling protocol parameters. Percentages are 0-100.
type Config struct {
	SamplePercentage    float64 `yaml:"sample_percentage"`
	EscalationThreshold float64 `yaml:"escalation_threshold"`
	FailureThreshold    float64 `yaml:"failure_threshold"`
	Temperature         float64 `yaml:"temperature"`
	MaxTokens           int     `yaml:"max_tokens"`
}

// DefaultConfig returns the default protocol parameters.
func DefaultConfig() Config {
	return Config{
		SamplePercentage:    20,
		EscalationThreshold: 30,
		FailureThreshold:    50,
		Temperature:         0.3,
		MaxTokens:           1500,
	}
}

// Validator runs the sampling protocol. Judging within one batch is
// sequential; concurrent batches share the random source under rngMu.
type Validator struct {
	judge  Judge
	cfg    Config
	rngMu  sync.Mutex
	rng    *rand.Rand
	logger *zap.Logger
}

// NewValidator creates a validator. A nil rng uses a time-seeded source.
func NewValidator(judge Judge, cfg Config, rng *rand.Rand, logger *zap.Logger) (*Validator, error) {
	if judge == nil {
		return nil, errors.New("validator requires a judge")
	}

	defaults := DefaultConfig()
	if cfg.SamplePercentage <= 0 {
		cfg.SamplePercentage = defaults.SamplePercentage
	}
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = defaults.EscalationThreshold
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Validator{judge: judge, cfg: cfg, rng: rng, logger: logger}, nil
}

// Config returns the effective configuration.
func (v *Validator) Config() Config {
	return v.cfg
}

// SampleSize is max(1, floor(n * pct / 100)) for a non-empty batch.
func (v *Validator) SampleSize(n int) int {
	if n <= 0 {
		return 0
	}
	size := int(float64(n) * v.cfg.SamplePercentage / 100)
	if size < 1 {
		size = 1
	}
	if size > n {
		size = n
	}
	return size
}

// ValidateBatch decides a batch from a random sample.
//
// A sample failure rate at or above the failure threshold rejects the batch.
// A rate in [escalation, failure) with a sample smaller than half the batch
// re-samples once at double size, and the new sample's rate alone decides.
// A rejected batch is salvaged by judging every item on its own; an accepted
// batch is admitted whole.
func (v *Validator) ValidateBatch(ctx context.Context, scenarios []models.Scenario) models.BatchOutcome {
	n := len(scenarios)
	if n == 0 {
		return models.BatchOutcome{
			Decision: models.BatchAccepted,
			Approved: []models.Scenario{},
			Reports:  []models.ValidationReport{},
		}
	}

	size := v.SampleSize(n)
	reports, failures := v.judgeSample(ctx, scenarios, size)
	rate := failureRate(failures, reports)
	escalated := false

	if rate < v.cfg.FailureThreshold && rate >= v.cfg.EscalationThreshold && size < n/2 {
		v.logger.Warn("Sample failure rate above escalation threshold, increasing sample size",
			zap.Float64("failure_rate", rate),
			zap.Int("sample_size", size))

		size = min(n, 2*size)
		escalated = true
		reports, failures = v.judgeSample(ctx, scenarios, size)
		rate = failureRate(failures, reports)
	}

	outcome := models.BatchOutcome{
		BatchSize:   n,
		SampleSize:  size,
		Escalated:   escalated,
		FailureRate: rate,
	}

	if rate >= v.cfg.FailureThreshold {
		v.logger.Info("Batch quality failed, salvaging individually",
			zap.Float64("failure_rate", rate),
			zap.Int("batch_size", n),
			zap.Bool("escalated", escalated))

		outcome.Decision = models.BatchRejected
		outcome.Feedback = SynthesizeFeedback(failures)
		outcome.Approved, outcome.Reports = v.salvage(ctx, scenarios)
		return outcome
	}

	v.logger.Info("Batch approved from sample",
		zap.Float64("failure_rate", rate),
		zap.Int("sample_size", size),
		zap.Int("batch_size", n),
		zap.Bool("escalated", escalated))

	outcome.Decision = models.BatchAccepted
	outcome.Approved = append([]models.Scenario(nil), scenarios...)
	outcome.Reports = reports
	return outcome
}

// JudgeScenario asks the judge about one scenario. Judge faults become a
// failed report with score 0.
func (v *Validator) JudgeScenario(ctx context.Context, s models.Scenario) models.ValidationReport {
	text, err := v.judge.Complete(ctx, models.CompletionRequest{
		System:      SystemPrompt(),
		User:        UserPrompt(s),
		Temperature: v.cfg.Temperature,
		MaxTokens:   v.cfg.MaxTokens,
	})
	if err != nil {
		v.logger.Error("Error validating scenario", zap.Error(err))
		return models.ValidationReport{
			Approved: false,
			Score:    0,
			Reason:   fmt.Sprintf("Validation error: %v", err),
			Scenario: s,
		}
	}

	report := ParseJudgeResponse(text, s)
	v.logger.Debug("Validator decision",
		zap.Bool("approved", report.Approved),
		zap.Int("score", report.Score),
		zap.String("reason", truncate(report.Reason, 80)))
	return report
}

// JudgeAll judges every scenario in order and returns the approved ones with
// all reports.
func (v *Validator) JudgeAll(ctx context.Context, scenarios []models.Scenario) ([]models.Scenario, []models.ValidationReport) {
	approved := make([]models.Scenario, 0, len(scenarios))
	reports := make([]models.ValidationReport, 0, len(scenarios))

	for _, s := range scenarios {
		report := v.JudgeScenario(ctx, s)
		reports = append(reports, report)
		if report.Approved {
			approved = append(approved, s)
		}
	}
	return approved, reports
}

func (v *Validator) salvage(ctx context.Context, scenarios []models.Scenario) ([]models.Scenario, []models.ValidationReport) {
	approved, reports := v.JudgeAll(ctx, scenarios)
	v.logger.Info("Individual validation results",
		zap.Int("approved", len(approved)),
		zap.Int("total", len(scenarios)))
	return approved, reports
}

// judgeSample draws size items without replacement and judges each.
func (v *Validator) judgeSample(ctx context.Context, scenarios []models.Scenario, size int) ([]models.ValidationReport, []models.ValidationReport) {
	v.logger.Info("Validating sample",
		zap.Int("sample_size", size),
		zap.Int("batch_size", len(scenarios)))

	v.rngMu.Lock()
	idx := v.rng.Perm(len(scenarios))[:size]
	v.rngMu.Unlock()

	reports := make([]models.ValidationReport, 0, size)
	var failures []models.ValidationReport
	for _, i := range idx {
		report := v.JudgeScenario(ctx, scenarios[i])
		reports = append(reports, report)
		if !report.Approved {
			failures = append(failures, report)
		}
	}
	return reports, failures
}

func failureRate(failures, reports []models.ValidationReport) float64 {
	if len(reports) == 0 {
		return 0
	}
	return float64(len(failures)) / float64(len(reports)) * 100
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
