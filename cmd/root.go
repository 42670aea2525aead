package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "face-matcher",
	Short: "Match face images against a reference embedding database",
	Long: `Face Matcher computes an embedding for an uploaded face image using a
pretrained model and finds the closest identity in a precomputed reference
database by cosine similarity. It ships a small web front end, a JSON API
and tools for building and inspecting reference snapshots.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Setup(config.Load().Log, nil)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
