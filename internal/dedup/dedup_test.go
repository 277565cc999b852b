package dedup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"scenario-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEncoder maps known texts to fixed vectors.
type fakeEncoder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (f *fakeEncoder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, errors.New("unknown text " + t)
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEncoder) Name() string { return "fake" }

// Vectors on the unit circle; cos(A, A2) ~ 0.95, A vs B/C are far apart.
func testEncoder() *fakeEncoder {
	return &fakeEncoder{vectors: map[string][]float32{
		"A":  {1, 0, 0},
		"A2": {0.95, 0.31225, 0},
		"B":  {0, 1, 0},
		"C":  {0, 0, 1},
		"D":  {0.6, 0, 0.8},
	}}
}

func scenarios(texts ...string) []models.Scenario {
	out := make([]models.Scenario, len(texts))
	for i, t := range texts {
		out[i] = models.Scenario{Input: t, Target: "t", Category: "c", Severity: "low", PrincipleToEvaluate: "p"}
	}
	return out
}

func newTestDeduplicator(t *testing.T, enc *fakeEncoder, opts Options) (*Deduplicator, *FileStore) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return New(enc, store, opts, zap.NewNop()), store
}

func TestFilterEmptyInputTouchesNothing(t *testing.T) {
	enc := testEncoder()
	d, store := newTestDeduplicator(t, enc, Options{})

	texts, records, err := d.Filter(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, texts)
	assert.Empty(t, records)
	assert.Zero(t, enc.calls)
	assert.False(t, store.Exists())
	assert.Equal(t, models.SessionStatistics{}, d.Stats())
}

func TestFilterCleanCacheKeepsEverything(t *testing.T) {
	enc := testEncoder()
	d, store := newTestDeduplicator(t, enc, Options{})

	in := []string{"A", "B", "C"}
	texts, records, err := d.Filter(context.Background(), in, scenarios(in...))
	require.NoError(t, err)

	assert.Equal(t, in, texts)
	assert.Equal(t, scenarios(in...), records)
	assert.Equal(t, in, d.cache.Texts())
	assert.True(t, store.Exists())
	assert.Equal(t, models.SessionStatistics{TotalProcessed: 3}, d.Stats())
}

func TestFilterSameBatchNotCrossCheckedByDefault(t *testing.T) {
	d, _ := newTestDeduplicator(t, testEncoder(), Options{})

	texts, _, err := d.Filter(context.Background(), []string{"A", "A"}, scenarios("A", "A"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A"}, texts)
}

func TestFilterWithinBatchOption(t *testing.T) {
	d, _ := newTestDeduplicator(t, testEncoder(), Options{WithinBatch: true})

	texts, _, err := d.Filter(context.Background(), []string{"A", "B", "A2"}, scenarios("A", "B", "A2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, texts)
	assert.Equal(t, 1, d.Stats().TotalDuplicates)
}

func TestFilterPreservesOrder(t *testing.T) {
	d, _ := newTestDeduplicator(t, testEncoder(), Options{})
	ctx := context.Background()

	_, _, err := d.Filter(ctx, []string{"A"}, scenarios("A"))
	require.NoError(t, err)

	texts, records, err := d.Filter(ctx, []string{"B", "A2", "C"}, scenarios("B", "A2", "C"))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, texts)
	assert.Equal(t, scenarios("B", "C"), records)
	assert.Equal(t, []string{"A", "B", "C"}, d.cache.Texts())

	stats := d.Stats()
	assert.Equal(t, 4, stats.TotalProcessed)
	assert.Equal(t, 1, stats.TotalDuplicates)
}

func TestFindDuplicatesReportsMatch(t *testing.T) {
	d, _ := newTestDeduplicator(t, testEncoder(), Options{})
	ctx := context.Background()

	_, _, err := d.Filter(ctx, []string{"A", "B"}, scenarios("A", "B"))
	require.NoError(t, err)

	dups, err := d.FindDuplicates(ctx, []string{"C", "A2"})
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, 1, dups[0].Index)
	assert.Equal(t, "A2", dups[0].Text)
	assert.Equal(t, "A", dups[0].MatchedText)
	assert.InDelta(t, 0.95, dups[0].Similarity, 0.01)

	// read-only
	assert.Equal(t, 2, d.cache.Len())
	assert.Equal(t, 2, d.Stats().TotalProcessed)
}

func TestThresholdMonotonicity(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		threshold float64
		wantDup   bool
	}{
		{"default catches close paraphrase", DefaultThreshold, true},
		{"lower threshold still catches", 0.5, true},
		{"threshold above similarity lets it through", 0.96, false},
		{"threshold just below D similarity", 0.59, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDeduplicator(t, testEncoder(), Options{})
			_, _, err := d.Filter(ctx, []string{"A"}, scenarios("A"))
			require.NoError(t, err)
			require.NoError(t, d.AdjustThreshold(tt.threshold))

			probe := "A2"
			if tt.threshold == 0.59 {
				probe = "D"
			}
			texts, _, err := d.Filter(ctx, []string{probe}, scenarios(probe))
			require.NoError(t, err)
			if tt.wantDup {
				assert.Empty(t, texts)
			} else {
				assert.Equal(t, []string{probe}, texts)
			}
		})
	}
}

func TestAdjustThresholdRejectsOutOfRange(t *testing.T) {
	d, _ := newTestDeduplicator(t, testEncoder(), Options{})
	assert.Error(t, d.AdjustThreshold(0))
	assert.Error(t, d.AdjustThreshold(1.5))
	assert.Equal(t, DefaultThreshold, d.Threshold())
}

func TestFilterEncoderFailure(t *testing.T) {
	enc := testEncoder()
	enc.err = errors.New("embedding backend down")
	d, _ := newTestDeduplicator(t, enc, Options{})

	_, _, err := d.Filter(context.Background(), []string{"A"}, scenarios("A"))
	require.Error(t, err)
	assert.Zero(t, d.Stats().TotalProcessed)
}

func TestFilterLengthMismatch(t *testing.T) {
	d, _ := newTestDeduplicator(t, testEncoder(), Options{})
	_, _, err := d.Filter(context.Background(), []string{"A", "B"}, scenarios("A"))
	assert.Error(t, err)
}

func TestCachePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	first := New(testEncoder(), store, Options{}, zap.NewNop())
	_, _, err = first.Filter(ctx, []string{"A", "B"}, scenarios("A", "B"))
	require.NoError(t, err)

	second := New(testEncoder(), store, Options{}, zap.NewNop())
	assert.Equal(t, 2, second.CacheInfo().TotalCached)
	assert.Equal(t, 3, second.CacheInfo().Dimensions)

	texts, _, err := second.Filter(ctx, []string{"A2"}, scenarios("A2"))
	require.NoError(t, err)
	assert.Empty(t, texts)
}

func TestCorruptCacheStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, embeddingsFile), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, textsFile), []byte(`["A"]`), 0o644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	d := New(testEncoder(), store, Options{}, zap.NewNop())
	assert.Equal(t, 0, d.CacheInfo().TotalCached)
}

func TestMismatchedArtifactsStartEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, embeddingsFile), []byte(`[[1,0]]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, textsFile), []byte(`["A","B"]`), 0o644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	d := New(testEncoder(), store, Options{}, zap.NewNop())
	assert.Equal(t, 0, d.CacheInfo().TotalCached)
}

func TestClearIsIdempotent(t *testing.T) {
	d, store := newTestDeduplicator(t, testEncoder(), Options{})
	_, _, err := d.Filter(context.Background(), []string{"A"}, scenarios("A"))
	require.NoError(t, err)

	require.NoError(t, d.Clear())
	require.NoError(t, d.Clear())
	assert.False(t, store.Exists())
	assert.Equal(t, 0, d.CacheInfo().TotalCached)
	assert.Equal(t, 1, d.Stats().TotalProcessed)
}

func TestSeedSkipsCachedTexts(t *testing.T) {
	enc := testEncoder()
	d, _ := newTestDeduplicator(t, enc, Options{})
	ctx := context.Background()

	added, err := d.Seed(ctx, []string{"A", "B", "A"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = d.Seed(ctx, []string{"A", "C"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"A", "B", "C"}, d.cache.Texts())
	assert.Equal(t, models.SessionStatistics{}, d.Stats())
}

func TestFeedbackLevels(t *testing.T) {
	tests := []struct {
		name       string
		processed  int
		duplicates int
		contains   string
	}{
		{"none processed", 0, 0, ""},
		{"low rate", 10, 3, ""},
		{"high rate", 10, 4, "HIGH DUPLICATION"},
		{"upper high", 100, 69, "HIGH DUPLICATION"},
		{"critical rate", 10, 8, "CRITICAL DUPLICATION"},
		{"exactly seventy", 10, 7, "CRITICAL DUPLICATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDeduplicator(t, testEncoder(), Options{})
			d.stats = models.SessionStatistics{TotalProcessed: tt.processed, TotalDuplicates: tt.duplicates}

			fb := d.Feedback()
			if tt.contains == "" {
				assert.Empty(t, fb)
			} else {
				assert.Contains(t, fb, tt.contains)
				assert.Contains(t, fb, "duplicate")
			}

			report := d.FeedbackReport()
			assert.Equal(t, fb, report.Guidance)
			assert.InDelta(t, d.Stats().DuplicateRate(), report.DuplicateRate, 1e-9)
		})
	}
}
