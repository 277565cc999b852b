package main

import (
	"fmt"
	"os"

	"scenario-service/internal/app"
	"scenario-service/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	debug      bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "datagen",
	Short: "Generate humane-tech evaluation scenarios",
	Long: `datagen generates scenarios with an LLM, checks batch quality with a
sampled LLM judge, drops semantic duplicates against an embedding cache and
appends the survivors to the dataset CSV.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if debug {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yml", "path to the YAML config")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose development logging")

	rootCmd.AddCommand(runCmd, interactiveCmd, statsCmd, cacheCmd, tokenCmd)
}

// buildApp wires the pipeline and loads existing dataset inputs into the cache.
func buildApp(cmd *cobra.Command) (*app.App, error) {
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	if _, err := a.Pipeline.SyncCache(cmd.Context()); err != nil {
		logger.Warn("Could not load existing scenarios for deduplication", zap.Error(err))
	}
	return a, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
