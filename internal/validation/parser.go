package validation

import (
	"strconv"
	"strings"

	"scenario-service/internal/models"
)

const (
	prefixApproved    = "APPROVED:"
	prefixScore       = "SCORE:"
	prefixReasoning   = "REASONING:"
	prefixSuggestions = "SUGGESTIONS:"
)

// ParseJudgeResponse turns the judge's line-prefixed text into a report.
// Parsing never fails: missing or malformed fields take their defaults.
//
// Lines after REASONING: or SUGGESTIONS: that carry no known prefix are
// appended to that section.
func ParseJudgeResponse(text string, scenario models.Scenario) models.ValidationReport {
	var (
		verdict     bool
		score       int
		reasoning   []string
		suggestions []string
		section     *[]string
	)

	for _, raw := range strings.Split(strings.TrimSpace(text), "\n") {
		line := strings.TrimSpace(raw)

		switch {
		case strings.HasPrefix(line, prefixApproved):
			verdict = strings.Contains(strings.ToUpper(line), "YES")
			section = nil
		case strings.HasPrefix(line, prefixScore):
			score = parseScore(strings.TrimPrefix(line, prefixScore))
			section = nil
		case strings.HasPrefix(line, prefixReasoning):
			reasoning = []string{strings.TrimSpace(strings.TrimPrefix(line, prefixReasoning))}
			section = &reasoning
		case strings.HasPrefix(line, prefixSuggestions):
			suggestions = []string{strings.TrimSpace(strings.TrimPrefix(line, prefixSuggestions))}
			section = &suggestions
		case section != nil:
			*section = append(*section, line)
		}
	}

	reasoningText := joinSection(reasoning)
	suggestionsText := joinSection(suggestions)

	report := models.ValidationReport{
		Score:       score,
		Suggestions: suggestionsText,
		RawResponse: text,
		Scenario:    scenario,
	}

	if score >= models.ApprovalScore && verdict {
		report.Approved = true
		report.Reason = firstNonEmpty(reasoningText, "Meets quality threshold")
	} else {
		report.Reason = firstNonEmpty(reasoningText, suggestionsText, "Below quality threshold")
	}

	return report
}

// parseScore keeps the digits that precede the first "/", so "85/100" is 85
// and "7x/100" is 7. No digits yields 0.
func parseScore(s string) int {
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

func joinSection(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
