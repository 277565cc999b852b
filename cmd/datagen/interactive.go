package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"scenario-service/internal/pipeline"
	"scenario-service/internal/validation"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const stopCommand = "STOP GENERATION"

var interactiveBatchSize int

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Generate batch after batch, steering with free-text context",
	Long: `Runs one generation cycle per prompt. Press Enter to continue with the
current context, type new text to replace the context, or type
"STOP GENERATION" to finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rl, err := readline.NewEx(&readline.Config{
			Prompt:          color.New(color.FgCyan).Sprint("context> "),
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err != nil {
			return fmt.Errorf("failed to create readline: %w", err)
		}
		defer rl.Close()

		batchSize := interactiveBatchSize
		if batchSize <= 0 {
			batchSize = a.Pipeline.Config().BatchSize
		}

		s := &session{pipeline: a.Pipeline, batchSize: batchSize}
		return s.loop(cmd.Context(), rl)
	},
}

func init() {
	interactiveCmd.Flags().IntVarP(&interactiveBatchSize, "batch-size", "b", 0, "scenarios per cycle (default from config)")
}

// cycleRunner is the part of the pipeline the session drives.
type cycleRunner interface {
	RunOnce(ctx context.Context, batchSize int, userContext string) (*pipeline.CycleResult, error)
}

type lineReader interface {
	Readline() (string, error)
}

type session struct {
	pipeline  cycleRunner
	batchSize int
	context   string
}

// next applies one line of input. It reports false when generation should stop.
func (s *session) next(line string) bool {
	line = strings.TrimSpace(line)
	if strings.Contains(strings.ToUpper(line), stopCommand) {
		return false
	}
	if line != "" {
		s.context = line
	}
	return true
}

func (s *session) loop(ctx context.Context, rl lineReader) error {
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	header("=== Humane tech scenario generation ===")

	for {
		current := s.context
		if current == "" {
			current = "None"
		}
		fmt.Printf("\nReady to generate %d scenarios. Current context: %s\n", s.batchSize, current)
		fmt.Printf("Press Enter to continue, type new context, or %q to finish.\n", stopCommand)

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if !s.next(line) {
			break
		}

		cycle, err := s.pipeline.RunOnce(ctx, s.batchSize, s.context)
		if err != nil {
			fmt.Printf("%s %v\n", red("Error:"), err)
			logger.Error("Cycle failed", zap.Error(err))
			continue
		}

		printCycle(cycle)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	fmt.Println(yellow("\nGeneration stopped"))
	return nil
}

func printCycle(cycle *pipeline.CycleResult) {
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	rec := cycle.Record
	if rec.Generated == 0 {
		fmt.Println(red("No scenarios generated. Check your API keys and model availability."))
		return
	}

	printValidationSummary(validation.Summarize(cycle.Outcome.Reports))

	if rec.Approved == 0 {
		fmt.Println(red("No scenarios passed validation."))
		return
	}

	fmt.Printf("%s (%d duplicates filtered)\n", green(fmt.Sprintf("Added %d unique scenarios", rec.Added)), rec.Duplicates)
	if len(cycle.Added) > 3 {
		printSamples(cycle.Added[:3])
	} else {
		printSamples(cycle.Added)
	}
}
