package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"scenario-service/internal/dataset"
	"scenario-service/internal/generation"
	"scenario-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	requests []generation.Request
	counter  int
	empty    bool
}

func (g *fakeGenerator) GenerateBatch(_ context.Context, req generation.Request) []models.Scenario {
	g.requests = append(g.requests, req)
	if g.empty {
		return []models.Scenario{}
	}
	out := make([]models.Scenario, req.BatchSize)
	for i := range out {
		g.counter++
		out[i] = models.Scenario{
			Input:               fmt.Sprintf("Generated scenario number %d", g.counter),
			Target:              "A balanced answer",
			Category:            "everyday_decisions",
			Severity:            "low",
			PrincipleToEvaluate: "Enhance Agency",
		}
	}
	return out
}

type validatorFunc func(scenarios []models.Scenario) models.BatchOutcome

func (f validatorFunc) ValidateBatch(_ context.Context, scenarios []models.Scenario) models.BatchOutcome {
	return f(scenarios)
}

func acceptAll(scenarios []models.Scenario) models.BatchOutcome {
	reports := make([]models.ValidationReport, len(scenarios))
	for i, s := range scenarios {
		reports[i] = models.ValidationReport{Approved: true, Score: 80, Scenario: s}
	}
	return models.BatchOutcome{
		Decision:   models.BatchAccepted,
		BatchSize:  len(scenarios),
		SampleSize: 1,
		Approved:   scenarios,
		Reports:    reports[:1],
	}
}

type fakeDedup struct {
	seen     map[string]bool
	feedback string
	stats    models.SessionStatistics
	err      error
	failures int
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: map[string]bool{}}
}

func (d *fakeDedup) Filter(_ context.Context, texts []string, records []models.Scenario) ([]string, []models.Scenario, error) {
	if d.err != nil && d.failures > 0 {
		d.failures--
		return nil, nil, d.err
	}
	var keptTexts []string
	var kept []models.Scenario
	for i, t := range texts {
		d.stats.TotalProcessed++
		if d.seen[t] {
			d.stats.TotalDuplicates++
			continue
		}
		d.seen[t] = true
		keptTexts = append(keptTexts, t)
		kept = append(kept, records[i])
	}
	return keptTexts, kept, nil
}

func (d *fakeDedup) Seed(_ context.Context, texts []string) (int, error) {
	n := 0
	for _, t := range texts {
		if !d.seen[t] {
			d.seen[t] = true
			n++
		}
	}
	return n, nil
}

func (d *fakeDedup) Feedback() string                { return d.feedback }
func (d *fakeDedup) Stats() models.SessionStatistics { return d.stats }

func newStore(t *testing.T) *dataset.Store {
	t.Helper()
	dir := t.TempDir()
	return dataset.NewStore(filepath.Join(dir, "dataset.csv"), filepath.Join(dir, "backup.csv"), zap.NewNop())
}

func TestRunBatchSplitsIntoCeilingBatches(t *testing.T) {
	gen := &fakeGenerator{}
	store := newStore(t)
	p := New(gen, validatorFunc(acceptAll), newFakeDedup(), store, Config{}, zap.NewNop())

	var recorded []models.BatchRecord
	res, err := p.RunBatch(context.Background(), RunRequest{
		Total:     5,
		BatchSize: 2,
		Recorder: BatchRecorderFunc(func(_ context.Context, rec models.BatchRecord) {
			recorded = append(recorded, rec)
		}),
	})
	require.NoError(t, err)

	require.Len(t, gen.requests, 3)
	assert.Equal(t, 2, gen.requests[0].BatchSize)
	assert.Equal(t, 2, gen.requests[1].BatchSize)
	assert.Equal(t, 1, gen.requests[2].BatchSize)

	assert.Equal(t, 5, res.TotalGenerated)
	assert.Equal(t, 5, res.TotalAdded)
	assert.Equal(t, 5, res.DatasetStats.TotalRows)
	require.Len(t, res.Batches, 3)
	assert.Equal(t, res.Batches, recorded)
	assert.Equal(t, 3, res.Batches[2].BatchNumber)
	assert.Equal(t, 1, res.Batches[2].Attempt)
	require.NotNil(t, res.ValidationSummary)
	assert.Equal(t, 3, res.ValidationSummary.TotalScenarios)
}

func TestRunBatchRetriesWithFeedback(t *testing.T) {
	gen := &fakeGenerator{}
	calls := 0
	val := validatorFunc(func(scenarios []models.Scenario) models.BatchOutcome {
		calls++
		if calls == 1 {
			return models.BatchOutcome{
				Decision:    models.BatchRejected,
				BatchSize:   len(scenarios),
				FailureRate: 100,
				Approved:    []models.Scenario{},
				Feedback:    "VALIDATION FEEDBACK: make scenarios more realistic",
			}
		}
		return acceptAll(scenarios)
	})
	dedup := newFakeDedup()
	dedup.feedback = "HIGH DUPLICATION (45.0%): vary topics"

	p := New(gen, val, dedup, newStore(t), Config{}, zap.NewNop())
	res, err := p.RunBatch(context.Background(), RunRequest{Total: 3, BatchSize: 3, Context: "teenagers"})
	require.NoError(t, err)

	require.Len(t, gen.requests, 2)
	assert.Equal(t, "teenagers", gen.requests[0].Context)
	assert.Contains(t, gen.requests[1].Context, "teenagers")
	assert.Contains(t, gen.requests[1].Context, "make scenarios more realistic")
	assert.Contains(t, gen.requests[1].Context, "HIGH DUPLICATION")

	require.Len(t, res.Batches, 2)
	assert.Equal(t, models.BatchRejected, res.Batches[0].Decision)
	assert.Equal(t, 1, res.Batches[0].Attempt)
	assert.Equal(t, 2, res.Batches[1].Attempt)
	assert.Equal(t, 3, res.TotalAdded)
	assert.Equal(t, 6, res.TotalGenerated)
}

func TestRunBatchGivesUpAfterMaxRetries(t *testing.T) {
	gen := &fakeGenerator{empty: true}
	p := New(gen, validatorFunc(acceptAll), newFakeDedup(), newStore(t), Config{}, zap.NewNop())

	res, err := p.RunBatch(context.Background(), RunRequest{Total: 4, BatchSize: 2, MaxRetries: 2})
	require.NoError(t, err)

	assert.Len(t, gen.requests, 4)
	assert.Len(t, res.Batches, 4)
	assert.Zero(t, res.TotalAdded)
	assert.Nil(t, res.ValidationSummary)
}

func TestRunBatchAutoApproveSkipsValidation(t *testing.T) {
	val := validatorFunc(func([]models.Scenario) models.BatchOutcome {
		t.Fatal("validator must not be called")
		return models.BatchOutcome{}
	})
	p := New(&fakeGenerator{}, val, newFakeDedup(), newStore(t), Config{}, zap.NewNop())

	res, err := p.RunBatch(context.Background(), RunRequest{Total: 2, BatchSize: 2, AutoApprove: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalAdded)
	assert.Equal(t, models.BatchAccepted, res.Batches[0].Decision)
}

func TestRunBatchCountsDuplicates(t *testing.T) {
	gen := &fakeGenerator{}
	dedup := newFakeDedup()
	dedup.seen["Generated scenario number 1"] = true

	p := New(gen, validatorFunc(acceptAll), dedup, newStore(t), Config{}, zap.NewNop())
	res, err := p.RunBatch(context.Background(), RunRequest{Total: 3, BatchSize: 3})
	require.NoError(t, err)

	require.Len(t, res.Batches, 1)
	assert.Equal(t, 1, res.Batches[0].Duplicates)
	assert.Equal(t, 2, res.TotalAdded)
	assert.Equal(t, 1, res.DedupStats.TotalDuplicates)
}

func TestRunBatchRetriesAfterDedupFault(t *testing.T) {
	dedup := newFakeDedup()
	dedup.err = errors.New("embedding service unavailable")
	dedup.failures = 1

	p := New(&fakeGenerator{}, validatorFunc(acceptAll), dedup, newStore(t), Config{}, zap.NewNop())
	res, err := p.RunBatch(context.Background(), RunRequest{Total: 6, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 6, res.TotalAdded)

	require.Len(t, res.Batches, 4)
	first := res.Batches[0]
	assert.Equal(t, 1, first.BatchNumber)
	assert.Equal(t, 1, first.Attempt)
	assert.Zero(t, first.Added)
	assert.Contains(t, first.Error, "embedding service unavailable")

	retry := res.Batches[1]
	assert.Equal(t, 1, retry.BatchNumber)
	assert.Equal(t, 2, retry.Attempt)
	assert.Equal(t, 2, retry.Added)
	assert.Empty(t, retry.Error)
}

func TestRunBatchPersistentDedupFaultDoesNotAbort(t *testing.T) {
	dedup := newFakeDedup()
	dedup.err = errors.New("embedding service unavailable")
	dedup.failures = 100

	p := New(&fakeGenerator{}, validatorFunc(acceptAll), dedup, newStore(t), Config{MaxRetries: 2}, zap.NewNop())
	res, err := p.RunBatch(context.Background(), RunRequest{Total: 4, BatchSize: 2})
	require.NoError(t, err)
	assert.Zero(t, res.TotalAdded)
	assert.Len(t, res.Batches, 4)
	for _, b := range res.Batches {
		assert.NotEmpty(t, b.Error)
	}
}

func TestRunBatchRejectsNonPositiveTotal(t *testing.T) {
	p := New(&fakeGenerator{}, validatorFunc(acceptAll), newFakeDedup(), newStore(t), Config{}, zap.NewNop())
	_, err := p.RunBatch(context.Background(), RunRequest{Total: 0})
	assert.Error(t, err)
}

func TestRunBatchStopsOnCancelledContext(t *testing.T) {
	gen := &fakeGenerator{}
	p := New(gen, validatorFunc(acceptAll), newFakeDedup(), newStore(t), Config{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.RunBatch(ctx, RunRequest{Total: 2, BatchSize: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, gen.requests)
}

func TestRunOnce(t *testing.T) {
	gen := &fakeGenerator{}
	p := New(gen, validatorFunc(acceptAll), newFakeDedup(), newStore(t), Config{BatchSize: 4}, zap.NewNop())

	cycle, err := p.RunOnce(context.Background(), 0, "elderly users")
	require.NoError(t, err)
	assert.Equal(t, 4, gen.requests[0].BatchSize)
	assert.Equal(t, "elderly users", gen.requests[0].Context)
	assert.Len(t, cycle.Added, 4)
	assert.Equal(t, 4, cycle.Record.Added)

	stats, err := p.DatasetStats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRows)
}

func TestBalancePrinciplesFocusesGeneration(t *testing.T) {
	gen := &fakeGenerator{}
	p := New(gen, validatorFunc(acceptAll), newFakeDedup(), newStore(t), Config{BalancePrinciples: true}, zap.NewNop())

	_, err := p.RunOnce(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, models.HumanePrinciples, gen.requests[0].FocusPrinciples)
}

func TestSyncCacheSeedsFromDataset(t *testing.T) {
	store := newStore(t)
	_, err := store.Append([]models.Scenario{{
		Input:               "An existing scenario in the dataset",
		Target:              "t",
		Category:            "c",
		Severity:            "low",
		PrincipleToEvaluate: "p",
	}})
	require.NoError(t, err)

	dedup := newFakeDedup()
	p := New(&fakeGenerator{}, validatorFunc(acceptAll), dedup, store, Config{}, zap.NewNop())

	n, err := p.SyncCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, dedup.seen["An existing scenario in the dataset"])

	n, err = p.SyncCache(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
