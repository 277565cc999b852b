// Package dedup filters semantically duplicate scenarios against a growing
// embedding cache.
package dedup

import (
	"context"
	"fmt"
	"sync"

	"scenario-service/internal/embedding"
	"scenario-service/internal/models"

	"go.uber.org/zap"
)

// DefaultThreshold is the cosine similarity at or above which a text is a duplicate.
const DefaultThreshold = 0.87

// Options tunes a Deduplicator.
type Options struct {
	Threshold float64
	// WithinBatch also compares each item against earlier survivors of the
	// same call. Off by default: only the cache is consulted.
	WithinBatch bool
}

// Duplicate describes one item classified as a duplicate.
type Duplicate struct {
	Index       int     `json:"index"`
	Text        string  `json:"text"`
	MatchedText string  `json:"matched_text"`
	Similarity  float64 `json:"similarity"`
}

// FeedbackReport is the structured form of the duplicate-rate guidance.
type FeedbackReport struct {
	DuplicateRate float64 `json:"duplicate_rate"`
	Guidance      string  `json:"guidance"`
}

// CacheInfo describes the cache state.
type CacheInfo struct {
	TotalCached    int     `json:"total_cached_texts"`
	Threshold      float64 `json:"similarity_threshold"`
	Dimensions     int     `json:"dimensions"`
	Encoder        string  `json:"encoder"`
	ArtifactsExist bool    `json:"cache_files_exist"`
}

// Deduplicator owns the cache and the session statistics of one run.
type Deduplicator struct {
	mu          sync.Mutex
	encoder     embedding.Encoder
	cache       *Cache
	store       Store
	threshold   float64
	withinBatch bool
	stats       models.SessionStatistics
	logger      *zap.Logger
}

// New creates a Deduplicator and loads the cache from store.
func New(encoder embedding.Encoder, store Store, opts Options, logger *zap.Logger) *Deduplicator {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}

	cache := NewCache(store, logger)
	cache.Load()

	return &Deduplicator{
		encoder:     encoder,
		cache:       cache,
		store:       store,
		threshold:   opts.Threshold,
		withinBatch: opts.WithinBatch,
		logger:      logger,
	}
}

// Filter drops duplicates from texts and the parallel records, keeping order.
// Survivors are added to the cache and persisted.
func (d *Deduplicator) Filter(ctx context.Context, texts []string, records []models.Scenario) ([]string, []models.Scenario, error) {
	if len(texts) != len(records) {
		return nil, nil, fmt.Errorf("texts and records differ in length: %d != %d", len(texts), len(records))
	}
	if len(texts) == 0 {
		return []string{}, []models.Scenario{}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	duplicates, vectors, err := d.scan(ctx, texts)
	if err != nil {
		return nil, nil, err
	}

	dupSet := make(map[int]struct{}, len(duplicates))
	for _, dup := range duplicates {
		dupSet[dup.Index] = struct{}{}
		d.logger.Info("Duplicate found",
			zap.Float64("similarity", dup.Similarity),
			zap.String("new", truncate(dup.Text, 100)),
			zap.String("existing", truncate(dup.MatchedText, 100)))
	}

	uniqueTexts := make([]string, 0, len(texts)-len(duplicates))
	uniqueRecords := make([]models.Scenario, 0, len(texts)-len(duplicates))
	uniqueVectors := make([][]float32, 0, len(texts)-len(duplicates))
	for i := range texts {
		if _, dup := dupSet[i]; dup {
			continue
		}
		uniqueTexts = append(uniqueTexts, texts[i])
		uniqueRecords = append(uniqueRecords, records[i])
		uniqueVectors = append(uniqueVectors, vectors[i])
	}

	if err := d.cache.Append(uniqueTexts, uniqueVectors); err != nil {
		d.logger.Error("Failed to persist embedding cache", zap.Error(err))
	}

	d.stats.TotalProcessed += len(texts)
	d.stats.TotalDuplicates += len(duplicates)

	d.logger.Info("Deduplication complete",
		zap.Int("input", len(texts)),
		zap.Int("unique", len(uniqueTexts)),
		zap.Int("duplicates", len(duplicates)),
		zap.Int("cached", d.cache.Len()))

	return uniqueTexts, uniqueRecords, nil
}

// FindDuplicates reports which texts would be dropped, without changing the
// cache or the statistics.
func (d *Deduplicator) FindDuplicates(ctx context.Context, texts []string) ([]Duplicate, error) {
	if len(texts) == 0 {
		return []Duplicate{}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	duplicates, _, err := d.scan(ctx, texts)
	return duplicates, err
}

// scan encodes texts in one call and classifies each against the cache.
func (d *Deduplicator) scan(ctx context.Context, texts []string) ([]Duplicate, [][]float32, error) {
	vectors, err := d.encoder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, nil, fmt.Errorf("encoder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	duplicates := []Duplicate{}
	var batchTexts []string
	var batchVectors [][]float32

	for i, vec := range vectors {
		if d.cache.Len() > 0 {
			scores, err := embedding.Similarities(vec, d.cache.vectors)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to compare text %d: %w", i, err)
			}
			if idx, best := embedding.Best(scores); idx >= 0 && best >= d.threshold {
				duplicates = append(duplicates, Duplicate{
					Index:       i,
					Text:        texts[i],
					MatchedText: d.cache.texts[idx],
					Similarity:  best,
				})
				continue
			}
		}

		if !d.withinBatch {
			continue
		}

		if len(batchVectors) > 0 {
			scores, err := embedding.Similarities(vec, batchVectors)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to compare text %d: %w", i, err)
			}
			if idx, best := embedding.Best(scores); idx >= 0 && best >= d.threshold {
				duplicates = append(duplicates, Duplicate{
					Index:       i,
					Text:        texts[i],
					MatchedText: batchTexts[idx],
					Similarity:  best,
				})
				continue
			}
		}
		batchTexts = append(batchTexts, texts[i])
		batchVectors = append(batchVectors, vec)
	}

	return duplicates, vectors, nil
}

// Seed adds texts that are not cached yet, such as rows already in the
// dataset at startup. Statistics are not affected.
func (d *Deduplicator) Seed(ctx context.Context, texts []string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]struct{}, d.cache.Len())
	for _, t := range d.cache.texts {
		seen[t] = struct{}{}
	}

	var missing []string
	for _, t := range texts {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		missing = append(missing, t)
	}

	if len(missing) == 0 {
		return 0, nil
	}

	d.logger.Info("Computing embeddings for existing texts", zap.Int("count", len(missing)))

	vectors, err := d.encoder.EmbedBatch(ctx, missing)
	if err != nil {
		return 0, fmt.Errorf("failed to embed existing texts: %w", err)
	}
	if err := d.cache.Append(missing, vectors); err != nil {
		return 0, err
	}

	d.logger.Info("Cache updated", zap.Int("total", d.cache.Len()))
	return len(missing), nil
}

// AdjustThreshold changes the similarity threshold for later calls.
func (d *Deduplicator) AdjustThreshold(threshold float64) error {
	if threshold <= 0 || threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.threshold = threshold
	d.logger.Info("Similarity threshold updated", zap.Float64("threshold", threshold))
	return nil
}

// Threshold returns the current similarity threshold.
func (d *Deduplicator) Threshold() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

// Clear empties the cache and deletes its artifacts. Statistics are kept.
func (d *Deduplicator) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.cache.Clear(); err != nil {
		return err
	}
	d.logger.Info("Embedding cache cleared")
	return nil
}

// Stats returns a copy of the session statistics.
func (d *Deduplicator) Stats() models.SessionStatistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Feedback returns guidance for the generator based on the session duplicate
// rate, or "" when duplication is not a concern.
func (d *Deduplicator) Feedback() string {
	return duplicationGuidance(d.Stats().DuplicateRate())
}

// FeedbackReport returns the rate together with its guidance.
func (d *Deduplicator) FeedbackReport() FeedbackReport {
	rate := d.Stats().DuplicateRate()
	return FeedbackReport{DuplicateRate: rate, Guidance: duplicationGuidance(rate)}
}

// CacheInfo describes the cache.
func (d *Deduplicator) CacheInfo() CacheInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	return CacheInfo{
		TotalCached:    d.cache.Len(),
		Threshold:      d.threshold,
		Dimensions:     d.cache.Dimensions(),
		Encoder:        d.encoder.Name(),
		ArtifactsExist: d.store.Exists(),
	}
}

func duplicationGuidance(rate float64) string {
	switch {
	case rate >= 70:
		return fmt.Sprintf("CRITICAL DUPLICATION: %.1f%% of recent scenarios were semantic duplicates of existing data. "+
			"Generate completely different situations, user populations and phrasing. "+
			"Do not reuse the setups, wording or questions of earlier scenarios.", rate)
	case rate >= 40:
		return fmt.Sprintf("HIGH DUPLICATION: %.1f%% of recent scenarios were semantic duplicates. "+
			"Increase diversity by varying settings, user types and wording so every scenario is unique.", rate)
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
