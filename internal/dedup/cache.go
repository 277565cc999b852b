package dedup

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Cache holds (text, vector) pairs in lock-step. All vectors share one dimension.
type Cache struct {
	store   Store
	logger  *zap.Logger
	texts   []string
	vectors [][]float32
	dim     int
}

// NewCache creates an empty cache backed by store. Call Load to restore state.
func NewCache(store Store, logger *zap.Logger) *Cache {
	return &Cache{store: store, logger: logger}
}

// Load restores the cache from its store. Missing or corrupt artifacts leave
// the cache empty and are only logged.
func (c *Cache) Load() {
	c.reset()

	texts, vectors, err := c.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoCache) {
			c.logger.Info("No embedding cache found, starting empty")
		} else {
			c.logger.Warn("Could not load embedding cache, starting empty", zap.Error(err))
		}
		return
	}

	if err := checkPairs(texts, vectors, 0); err != nil {
		c.logger.Warn("Embedding cache is inconsistent, starting empty", zap.Error(err))
		return
	}

	c.texts = texts
	c.vectors = vectors
	if len(vectors) > 0 {
		c.dim = len(vectors[0])
	}

	c.logger.Info("Loaded cached embeddings", zap.Int("count", len(texts)))
}

// Save persists the current state.
func (c *Cache) Save() error {
	if err := c.store.Save(c.texts, c.vectors); err != nil {
		return fmt.Errorf("failed to save embedding cache: %w", err)
	}
	return nil
}

// Append adds pairs and persists immediately. The in-memory append stands even
// if persisting fails.
func (c *Cache) Append(texts []string, vectors [][]float32) error {
	if len(texts) == 0 {
		return nil
	}
	if err := checkPairs(texts, vectors, c.dim); err != nil {
		return err
	}

	c.texts = append(c.texts, texts...)
	c.vectors = append(c.vectors, vectors...)
	if c.dim == 0 {
		c.dim = len(vectors[0])
	}

	return c.Save()
}

// Clear empties the cache and removes its artifacts. Safe to call repeatedly.
func (c *Cache) Clear() error {
	c.reset()
	if err := c.store.Remove(); err != nil {
		return fmt.Errorf("failed to clear embedding cache: %w", err)
	}
	return nil
}

// Len is the number of cached pairs.
func (c *Cache) Len() int { return len(c.texts) }

// Dimensions is the vector size, 0 while empty.
func (c *Cache) Dimensions() int { return c.dim }

// Texts returns a copy of the cached texts.
func (c *Cache) Texts() []string {
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out
}

// Contains reports whether text is cached verbatim.
func (c *Cache) Contains(text string) bool {
	for _, t := range c.texts {
		if t == text {
			return true
		}
	}
	return false
}

func (c *Cache) reset() {
	c.texts = nil
	c.vectors = nil
	c.dim = 0
}

// checkPairs enforces lock-step lengths and a uniform dimension. dim 0 means
// take the first vector's size.
func checkPairs(texts []string, vectors [][]float32, dim int) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("texts and vectors out of step: %d != %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim || dim == 0 {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return nil
}
