package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/lost-found/internal/config"
	"github.com/kozaktomas/lost-found/internal/embedding"
	"github.com/kozaktomas/lost-found/internal/facematch"
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare <lost-photo> <found-photo>",
	Short: "Score two photos the way the matcher would",
	Long: `Extract a face descriptor from both photos using the embedding server and
print their similarity and whether it reaches the current threshold.
Nothing is stored.

Examples:
  lost-found compare anna.jpg station.jpg
  lost-found compare anna.jpg station.jpg --json`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().Bool("json", false, "Output as JSON")
}

// CompareOutput is the result of the compare command.
type CompareOutput struct {
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold"`
	IsMatch    bool    `json:"isMatch"`
}

func extractFromFile(ctx context.Context, extractor embedding.Extractor, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	descriptor, err := extractor.ExtractDescriptor(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract face from %s: %w", path, err)
	}
	if descriptor == nil {
		return nil, fmt.Errorf("no face detected in %s", path)
	}
	return descriptor, nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()
	extractor := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.DescriptorDim)

	a, err := extractFromFile(ctx, extractor, args[0])
	if err != nil {
		return err
	}
	b, err := extractFromFile(ctx, extractor, args[1])
	if err != nil {
		return err
	}

	policy := facematch.NewPolicy(config.MatchThreshold)
	score := facematch.Similarity(a, b)
	out := CompareOutput{
		Similarity: score,
		Threshold:  policy.Threshold(),
		IsMatch:    policy.IsMatch(score),
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	fmt.Printf("Similarity: %.4f\n", out.Similarity)
	fmt.Printf("Threshold:  %.4f\n", out.Threshold)
	if out.IsMatch {
		fmt.Println("Result:     match")
	} else {
		fmt.Println("Result:     no match")
	}
	return nil
}
