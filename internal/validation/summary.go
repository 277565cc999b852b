package validation

import "scenario-service/internal/models"

const reasonKeyLength = 50

// Summarize aggregates reports. Only scores above zero count toward the
// average; rejection reasons are grouped on their first 50 characters.
func Summarize(reports []models.ValidationReport) models.ValidationSummary {
	summary := models.ValidationSummary{
		TotalScenarios:   len(reports),
		RejectionReasons: map[string]int{},
	}
	if len(reports) == 0 {
		return summary
	}

	scored, scoreSum := 0, 0
	for _, r := range reports {
		if r.Approved {
			summary.ApprovedCount++
		} else {
			summary.RejectionReasons[reasonKey(r.Reason)]++
		}
		if r.Score > 0 {
			scored++
			scoreSum += r.Score
		}
	}

	summary.RejectionCount = summary.TotalScenarios - summary.ApprovedCount
	summary.ApprovalRate = float64(summary.ApprovedCount) / float64(summary.TotalScenarios)
	if scored > 0 {
		summary.AverageScore = float64(scoreSum) / float64(scored)
	}

	return summary
}

func reasonKey(reason string) string {
	r := []rune(reason)
	if len(r) > reasonKeyLength {
		return string(r[:reasonKeyLength]) + "..."
	}
	return reason
}
