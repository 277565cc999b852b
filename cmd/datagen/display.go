package main

import (
	"fmt"
	"sort"

	"scenario-service/internal/models"
	"scenario-service/internal/pipeline"

	"github.com/fatih/color"
)

func header(title string) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan(title))
}

// sortedCounts orders a distribution by descending count, then name.
func sortedCounts(dist map[string]int) []string {
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if dist[keys[i]] != dist[keys[j]] {
			return dist[keys[i]] > dist[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func printDatasetStats(stats models.DatasetStats) {
	header("=== Dataset ===")
	fmt.Printf("Total rows: %d\n", stats.TotalRows)

	if len(stats.PrincipleDistribution) == 0 {
		return
	}
	fmt.Println("Principle distribution:")
	for _, p := range sortedCounts(stats.PrincipleDistribution) {
		count := stats.PrincipleDistribution[p]
		fmt.Printf("  • %s: %d (%.1f%%)\n", p, count, float64(count)/float64(stats.TotalRows)*100)
	}
}

func printValidationSummary(summary models.ValidationSummary) {
	if summary.TotalScenarios == 0 {
		return
	}

	header("=== Validation ===")
	fmt.Printf("Approved: %d/%d (%.1f%%)\n",
		summary.ApprovedCount, summary.TotalScenarios, summary.ApprovalRate*100)
	fmt.Printf("Average score: %.1f/100\n", summary.AverageScore)

	if len(summary.RejectionReasons) == 0 {
		return
	}
	fmt.Println("Top rejection reasons:")
	for i, reason := range sortedCounts(summary.RejectionReasons) {
		if i == 3 {
			break
		}
		fmt.Printf("  • %s: %d\n", reason, summary.RejectionReasons[reason])
	}
}

func printSamples(scenarios []models.Scenario) {
	if len(scenarios) == 0 {
		return
	}
	header("=== Sample scenarios added ===")
	for i, s := range scenarios {
		input := []rune(s.Input)
		if len(input) > 80 {
			input = append(input[:80], []rune("...")...)
		}
		fmt.Printf("%d. Input: %s\n", i+1, string(input))
		fmt.Printf("   Category: %s\n", s.Category)
		fmt.Printf("   Principle: %s\n", s.PrincipleToEvaluate)
	}
}

func printRunResult(res *pipeline.RunResult) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()

	header("=== Run complete ===")
	fmt.Printf("Generated: %d, added: %s\n", res.TotalGenerated, green(res.TotalAdded))
	fmt.Printf("Duplicates filtered this session: %d of %d (%.1f%%)\n",
		res.DedupStats.TotalDuplicates, res.DedupStats.TotalProcessed, res.DedupStats.DuplicateRate())

	if res.ValidationSummary != nil {
		printValidationSummary(*res.ValidationSummary)
	}
	printDatasetStats(res.DatasetStats)
}
