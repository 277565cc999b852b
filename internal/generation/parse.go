package generation

import (
	"encoding/csv"
	"strings"

	"scenario-service/internal/models"

	"go.uber.org/zap"
)

// ParseCSVLine splits one CSV row, honouring quotes. Rows the CSV reader
// rejects fall back to a plain comma split.
func ParseCSVLine(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	record, err := r.Read()
	if err != nil {
		return strings.Split(line, ",")
	}
	return record
}

// ParseScenarios extracts valid scenarios from free LLM text. Blank lines,
// comments, header rows, short rows and rows failing validation are skipped.
func ParseScenarios(text string, logger *zap.Logger) []models.Scenario {
	scenarios := []models.Scenario{}

	for _, raw := range strings.Split(strings.TrimSpace(text), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.Contains(strings.ToLower(line), "input,target") {
			continue
		}

		parts := ParseCSVLine(line)
		if len(parts) < len(models.DatasetColumns) {
			continue
		}

		s, err := models.ScenarioFromRecord(parts)
		if err != nil {
			continue
		}

		if err := s.Validate(); err != nil {
			logger.Debug("Invalid scenario skipped",
				zap.String("input", truncate(s.Input, 50)),
				zap.Error(err))
			continue
		}

		s.Severity = strings.ToLower(s.Severity)
		scenarios = append(scenarios, s)
	}

	return scenarios
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
