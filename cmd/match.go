package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/fingerprint"
)

var matchCmd = &cobra.Command{
	Use:   "match <image>",
	Short: "Match a single image against the reference database",
	Long: `Compute the embedding of an image file and print the closest identity.

Examples:
  face-matcher match probe.jpg
  face-matcher match probe.jpg --snapshot model/database.json --json`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Bool("json", false, "Output as JSON")
	addSourceFlags(matchCmd)
}

// MatchResult is the JSON output of the match command.
type MatchResult struct {
	Image       string  `json:"image"`
	Matched     bool    `json:"matched"`
	Label       string  `json:"label"`
	DisplayName string  `json:"display_name"`
	Similarity  float64 `json:"similarity"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg := config.Load()
	applySourceFlags(cmd, cfg)

	imageData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Model.Timeout)
	defer cancel()

	db, err := loadReferenceDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load reference database: %w", err)
	}
	matcher, err := newMatcher(cfg, db)
	if err != nil {
		return err
	}
	embedder, err := fingerprint.NewEmbedder(&cfg.Model)
	if err != nil {
		return err
	}

	embedding, err := embedder.Embed(ctx, imageData)
	if err != nil {
		return fmt.Errorf("computing embedding: %w", err)
	}
	match, err := matcher.FindMatch(embedding)
	if err != nil {
		return fmt.Errorf("finding match: %w", err)
	}

	result := MatchResult{
		Image:       args[0],
		Matched:     match.Found,
		Label:       match.Label,
		DisplayName: facematch.DisplayName(match.Label),
		Similarity:  match.Similarity,
	}
	if jsonOutput {
		return outputJSON(result)
	}

	if !result.Matched {
		fmt.Printf("%s: no match (reference database is empty)\n", result.Image)
		return nil
	}
	fmt.Printf("%s: %s (%s), similarity %.4f\n", result.Image, result.DisplayName, result.Label, result.Similarity)
	return nil
}
