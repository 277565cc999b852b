// Package dataset is the append-only CSV file holding accepted scenarios.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"scenario-service/internal/models"

	"go.uber.org/zap"
)

// DefaultBalanceTarget is the share each principle should reach (about 1/6).
const DefaultBalanceTarget = 0.167

// Store appends to and reads from the dataset file.
type Store struct {
	mu         sync.Mutex
	path       string
	backupPath string
	logger     *zap.Logger
}

// NewStore creates a store. Files are created lazily on first append.
func NewStore(path, backupPath string, logger *zap.Logger) *Store {
	return &Store{path: path, backupPath: backupPath, logger: logger}
}

// Path returns the dataset file location.
func (s *Store) Path() string {
	return s.path
}

// Append writes rows at the end of the file. The header is written only when
// the file is new or empty.
func (s *Store) Append(rows []models.Scenario) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create dataset dir: %w", err)
		}
	}

	needHeader := true
	if info, err := os.Stat(s.path); err == nil && info.Size() > 0 {
		needHeader = false
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(models.DatasetColumns); err != nil {
			return 0, fmt.Errorf("failed to write header: %w", err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row.Record()); err != nil {
			return 0, fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush dataset: %w", err)
	}

	s.logger.Info("Added rows to dataset", zap.Int("count", len(rows)), zap.String("path", s.path))
	return len(rows), nil
}

// ReadAll returns every row. A missing file is an empty dataset.
func (s *Store) ReadAll() ([]models.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Scenario{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows := []models.Scenario{}
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset: %w", err)
		}

		if first {
			first = false
			if len(record) > 0 && record[0] == models.DatasetColumns[0] {
				continue
			}
		}

		row, err := models.ScenarioFromRecord(record)
		if err != nil {
			s.logger.Warn("Skipping malformed dataset row", zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Inputs returns the input column in file order.
func (s *Store) Inputs() ([]string, error) {
	rows, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	return models.Inputs(rows), nil
}

// Stats counts rows and the principle, category and severity distributions.
func (s *Store) Stats() (models.DatasetStats, error) {
	stats := models.DatasetStats{
		PrincipleDistribution: map[string]int{},
		CategoryDistribution:  map[string]int{},
		SeverityDistribution:  map[string]int{},
	}

	rows, err := s.ReadAll()
	if err != nil {
		return stats, err
	}

	stats.TotalRows = len(rows)
	for _, row := range rows {
		stats.PrincipleDistribution[row.PrincipleToEvaluate]++
		stats.CategoryDistribution[row.Category]++
		stats.SeverityDistribution[row.Severity]++
	}
	return stats, nil
}

// Sample returns the last n rows.
func (s *Store) Sample(n int) ([]models.Scenario, error) {
	rows, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []models.Scenario{}, nil
	}
	if n < len(rows) {
		rows = rows[len(rows)-n:]
	}
	return rows, nil
}

// Backup copies the dataset to the backup path. No-op when there is no dataset.
func (s *Store) Backup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer src.Close()

	if s.backupPath == "" {
		return errors.New("backup path not configured")
	}

	dst, err := os.Create(s.backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy dataset: %w", err)
	}

	s.logger.Info("Backup created", zap.String("path", s.backupPath))
	return nil
}

// PrincipleBalance returns each principle's share of the dataset.
func (s *Store) PrincipleBalance() (map[string]float64, error) {
	stats, err := s.Stats()
	if err != nil {
		return nil, err
	}

	balance := map[string]float64{}
	if stats.TotalRows == 0 {
		return balance, nil
	}
	for principle, count := range stats.PrincipleDistribution {
		balance[principle] = float64(count) / float64(stats.TotalRows)
	}
	return balance, nil
}

// SuggestNeededPrinciples lists the principles whose share is below target.
// With no data every principle is suggested.
func (s *Store) SuggestNeededPrinciples(target float64) ([]string, error) {
	if target <= 0 {
		target = DefaultBalanceTarget
	}

	balance, err := s.PrincipleBalance()
	if err != nil {
		return nil, err
	}

	if len(balance) == 0 {
		return append([]string(nil), models.HumanePrinciples...), nil
	}

	var needed []string
	for _, p := range models.HumanePrinciples {
		if balance[p] < target {
			needed = append(needed, p)
		}
	}
	return needed, nil
}

// WriteCSV streams the dataset, header included, to w.
func (s *Store) WriteCSV(w io.Writer) error {
	rows, err := s.ReadAll()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(models.DatasetColumns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
