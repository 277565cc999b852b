package dedup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	embeddingsFile = "existing_embeddings.json"
	textsFile      = "existing_texts.json"
)

// ErrNoCache is returned by a Store that has nothing persisted yet.
var ErrNoCache = errors.New("no cache artifacts")

// Store persists the parallel text and vector artifacts of a Cache.
type Store interface {
	Load() ([]string, [][]float32, error)
	Save(texts []string, vectors [][]float32) error
	Remove() error
	Exists() bool
}

// FileStore keeps the two artifacts as JSON files in a cache directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the cache directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) embeddingsPath() string { return filepath.Join(s.dir, embeddingsFile) }
func (s *FileStore) textsPath() string      { return filepath.Join(s.dir, textsFile) }

// Exists reports whether both artifacts are present.
func (s *FileStore) Exists() bool {
	_, errE := os.Stat(s.embeddingsPath())
	_, errT := os.Stat(s.textsPath())
	return errE == nil && errT == nil
}

// Load reads both artifacts. A missing artifact yields ErrNoCache.
func (s *FileStore) Load() ([]string, [][]float32, error) {
	if !s.Exists() {
		return nil, nil, ErrNoCache
	}

	var vectors [][]float32
	if err := readJSON(s.embeddingsPath(), &vectors); err != nil {
		return nil, nil, err
	}

	var texts []string
	if err := readJSON(s.textsPath(), &texts); err != nil {
		return nil, nil, err
	}

	return texts, vectors, nil
}

// Save writes both artifacts, each through a temp file and rename.
func (s *FileStore) Save(texts []string, vectors [][]float32) error {
	if err := writeJSON(s.embeddingsPath(), vectors); err != nil {
		return err
	}
	return writeJSON(s.textsPath(), texts)
}

// Remove deletes both artifacts. Missing files are not an error.
func (s *FileStore) Remove() error {
	for _, p := range []string{s.embeddingsPath(), s.textsPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}
