package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Severity is the impact level of a scenario
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Input length bounds, in characters
const (
	MinInputLength = 10
	MaxInputLength = 500
)

// DatasetColumns is the fixed column order of the dataset file
var DatasetColumns = []string{"input", "target", "category", "severity", "principle_to_evaluate"}

// ValidSeverity reports whether s names one of the four severity levels (case insensitive)
func ValidSeverity(s string) bool {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Scenario is one labeled dataset row
type Scenario struct {
	Input               string `json:"input" binding:"required"`
	Target              string `json:"target" binding:"required"`
	Category            string `json:"category" binding:"required"`
	Severity            string `json:"severity" binding:"required"`
	PrincipleToEvaluate string `json:"principle_to_evaluate" binding:"required"`
}

// Validate checks required fields, input length and severity
func (s Scenario) Validate() error {
	fields := map[string]string{
		"input":                 s.Input,
		"target":                s.Target,
		"category":              s.Category,
		"severity":              s.Severity,
		"principle_to_evaluate": s.PrincipleToEvaluate,
	}
	for _, name := range DatasetColumns {
		if strings.TrimSpace(fields[name]) == "" {
			return fmt.Errorf("field %s is empty", name)
		}
	}

	n := utf8.RuneCountInString(strings.TrimSpace(s.Input))
	if n < MinInputLength || n > MaxInputLength {
		return fmt.Errorf("input length %d outside [%d, %d]", n, MinInputLength, MaxInputLength)
	}

	if !ValidSeverity(s.Severity) {
		return fmt.Errorf("invalid severity %q", s.Severity)
	}

	return nil
}

// Record returns the scenario as a row in DatasetColumns order
func (s Scenario) Record() []string {
	return []string{s.Input, s.Target, s.Category, s.Severity, s.PrincipleToEvaluate}
}

// ScenarioFromRecord builds a scenario from a row in DatasetColumns order
func ScenarioFromRecord(record []string) (Scenario, error) {
	if len(record) < len(DatasetColumns) {
		return Scenario{}, fmt.Errorf("expected %d fields, got %d", len(DatasetColumns), len(record))
	}
	return Scenario{
		Input:               strings.TrimSpace(record[0]),
		Target:              strings.TrimSpace(record[1]),
		Category:            strings.TrimSpace(record[2]),
		Severity:            strings.TrimSpace(record[3]),
		PrincipleToEvaluate: strings.TrimSpace(record[4]),
	}, nil
}

// Inputs extracts the input texts, in order
func Inputs(scenarios []Scenario) []string {
	out := make([]string, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.Input
	}
	return out
}
