package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/config"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// addSourceFlags registers the flags selecting the reference database.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("snapshot", "", "Reference snapshot file (.gob, .json, .yaml, .sqlite); overrides SNAPSHOT_PATH")
	cmd.Flags().String("matcher", "", "Matcher strategy: linear or hnsw; overrides MATCHER")
}

// applySourceFlags copies explicitly set source flags over the environment config.
func applySourceFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("snapshot") {
		cfg.Database.SnapshotPath = mustGetString(cmd, "snapshot")
	}
	if cmd.Flags().Changed("matcher") {
		cfg.Database.Matcher = mustGetString(cmd, "matcher")
	}
}
