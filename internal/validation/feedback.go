package validation

import (
	"fmt"
	"sort"
	"strings"

	"scenario-service/internal/models"
)

// lowScoreCutoff selects the failures that feed the average-score line.
const lowScoreCutoff = 50

type issueBucket struct {
	label string
	terms []string
}

// Buckets in priority order; a reason lands in the first one it matches.
var issueBuckets = []issueBucket{
	{"Realism", []string{"realism", "realistic"}},
	{"Principle Alignment", []string{"principle", "alignment"}},
	{"Diversity", []string{"diversity", "unique"}},
	{"Evaluation Utility", []string{"evaluation", "utility"}},
}

var improvementDirectives = []string{
	"- Focus on realistic, everyday situations humans encounter",
	"- Ensure clear differentiation between humane and non-humane responses",
	"- Match scenario content precisely with principle_to_evaluate field",
	"- Add more diversity in populations, contexts, and difficulty levels",
}

// SynthesizeFeedback turns failed reports into guidance for the next
// generation call. It returns "" when there are no failures.
func SynthesizeFeedback(failures []models.ValidationReport) string {
	if len(failures) == 0 {
		return ""
	}

	counts := make([]int, len(issueBuckets))
	lowScores := 0
	lowScoreSum := 0

	for _, f := range failures {
		if f.Score < lowScoreCutoff {
			lowScores++
			lowScoreSum += f.Score
		}

		if i := classifyReason(f.Reason); i >= 0 {
			counts[i]++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "VALIDATION FEEDBACK: %d scenarios failed validation.", len(failures))

	order := make([]int, 0, len(issueBuckets))
	for i, c := range counts {
		if c > 0 {
			order = append(order, i)
		}
	}
	// stable keeps priority order on ties
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })

	if len(order) > 0 {
		sb.WriteString("\n\nCOMMON ISSUES DETECTED:")
		for _, i := range order {
			fmt.Fprintf(&sb, "\n- %s: %d scenarios", issueBuckets[i].label, counts[i])
		}
	}

	if lowScores > 0 {
		avg := float64(lowScoreSum) / float64(lowScores)
		fmt.Fprintf(&sb, "\n\nQUALITY CONCERN: Average score of failed scenarios: %.1f/100", avg)
	}

	sb.WriteString("\n\nIMPROVEMENT SUGGESTIONS:")
	for _, d := range improvementDirectives {
		sb.WriteString("\n" + d)
	}

	return sb.String()
}

// classifyReason returns the bucket index for reason, or -1.
func classifyReason(reason string) int {
	lower := strings.ToLower(reason)
	for i, b := range issueBuckets {
		for _, term := range b.terms {
			if strings.Contains(lower, term) {
				return i
			}
		}
	}
	return -1
}
