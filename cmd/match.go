package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/lost-found/internal/config"
	"github.com/kozaktomas/lost-found/internal/facematch"
	"github.com/kozaktomas/lost-found/internal/matching"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run a full matching sweep over all approved reports",
	Long: `Compare every approved found report against every approved lost report
and create a pending match for each pair whose similarity reaches the
threshold. Pairs that already have a match are left untouched, so the sweep
can be re-run safely.

Examples:
  # Sweep with the threshold from FACE_MATCH_THRESHOLD
  lost-found match

  # Override the threshold for this run
  lost-found match --threshold 0.8

  # Output as JSON
  lost-found match --json`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Float64("threshold", -1, "Similarity threshold in [0, 1] (default: FACE_MATCH_THRESHOLD)")
	matchCmd.Flags().Int("concurrency", 0, "Found reports scored in parallel (default: MATCH_SWEEP_CONCURRENCY)")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
}

// MatchSweepOutput is the JSON output of the match command.
type MatchSweepOutput struct {
	matching.SweepResult
	Threshold  float64 `json:"threshold"`
	DurationMs int64   `json:"durationMs"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")
	threshold := mustGetFloat64(cmd, "threshold")

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	pool, backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	var opts []matching.Option
	if threshold >= 0 {
		if threshold > 1 {
			return fmt.Errorf("threshold must be in [0, 1], got %v", threshold)
		}
		opts = append(opts, matching.WithPolicy(facematch.NewPolicy(facematch.FixedThreshold(threshold))))
	}
	matcher := newMatcher(cfg, backend, log, opts...)

	var bar *progressbar.ProgressBar
	sweepOpts := matching.SweepOptions{Concurrency: mustGetInt(cmd, "concurrency")}
	if !jsonOutput {
		fmt.Printf("Matching with threshold %.2f\n", matcher.Policy().Threshold())
		sweepOpts.Progress = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Matching found reports"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("reports"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(done)
		}
	}

	start := time.Now()
	result, err := matcher.RunFullMatch(ctx, sweepOpts)
	if err != nil {
		return fmt.Errorf("match sweep failed: %w", err)
	}
	duration := time.Since(start)

	if jsonOutput {
		return outputJSON(MatchSweepOutput{
			SweepResult: result,
			Threshold:   matcher.Policy().Threshold(),
			DurationMs:  duration.Milliseconds(),
		})
	}

	if bar != nil {
		fmt.Println()
	}
	fmt.Println("\nSweep complete!")
	fmt.Printf("  Lost reports checked:  %d\n", result.LostPersonsChecked)
	fmt.Printf("  Found reports checked: %d\n", result.FoundPersonsChecked)
	fmt.Printf("  New matches:           %d\n", result.NewMatches)
	fmt.Printf("  Duration:              %s\n", formatDuration(duration))
	return nil
}
