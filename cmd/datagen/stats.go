package main

import (
	"fmt"

	"scenario-service/internal/dataset"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsTarget float64

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dataset distributions and under-represented principles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := dataset.NewStore(cfg.Dataset.Path, cfg.Dataset.BackupPath, logger)

		stats, err := store.Stats()
		if err != nil {
			return err
		}
		printDatasetStats(stats)

		if stats.TotalRows == 0 {
			return nil
		}

		if len(stats.CategoryDistribution) > 0 {
			fmt.Println("Categories:")
			for _, c := range sortedCounts(stats.CategoryDistribution) {
				fmt.Printf("  • %s: %d\n", c, stats.CategoryDistribution[c])
			}
		}
		if len(stats.SeverityDistribution) > 0 {
			fmt.Println("Severities:")
			for _, s := range sortedCounts(stats.SeverityDistribution) {
				fmt.Printf("  • %s: %d\n", s, stats.SeverityDistribution[s])
			}
		}

		needed, err := store.SuggestNeededPrinciples(statsTarget)
		if err != nil {
			return err
		}
		if len(needed) > 0 {
			header("=== Under-represented principles ===")
			for _, p := range needed {
				fmt.Printf("  • %s\n", color.YellowString(p))
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Float64Var(&statsTarget, "target", dataset.DefaultBalanceTarget, "target share per principle")
}
