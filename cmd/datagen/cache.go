package main

import (
	"fmt"
	"strconv"

	"scenario-service/internal/config"
	"scenario-service/internal/dedup"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the embedding cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache size and settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := dedup.NewFileStore(cfg.Dedup.CacheDir)
		if err != nil {
			return err
		}
		cache := dedup.NewCache(store, logger)
		cache.Load()

		header("=== Embedding cache ===")
		fmt.Printf("Directory: %s\n", cfg.Dedup.CacheDir)
		fmt.Printf("Cached texts: %d\n", cache.Len())
		fmt.Printf("Dimensions: %d\n", cache.Dimensions())
		fmt.Printf("Similarity threshold: %.2f\n", cfg.Dedup.Threshold)
		fmt.Printf("Encoder: %s/%s\n", cfg.Embedding.Provider, cfg.Embedding.Model)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cached embeddings",
	Long: `Deletes the cached embeddings. The next run re-embeds the dataset inputs
before generating.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := dedup.NewFileStore(cfg.Dedup.CacheDir)
		if err != nil {
			return err
		}
		if err := dedup.NewCache(store, logger).Clear(); err != nil {
			return err
		}
		fmt.Println(color.GreenString("Embedding cache cleared"))
		return nil
	},
}

var cacheThresholdCmd = &cobra.Command{
	Use:   "threshold <value>",
	Short: "Set the similarity threshold in the config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid threshold %q: %w", args[0], err)
		}
		if err := config.UpdateDedupThreshold(configPath, threshold); err != nil {
			return err
		}
		fmt.Printf("Similarity threshold set to %s in %s\n", color.GreenString("%.2f", threshold), configPath)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd, cacheClearCmd, cacheThresholdCmd)
}
