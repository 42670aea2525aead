package cmd

import (
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the reference embedding database",
	Long: `Build, inspect and publish reference snapshots.

A snapshot maps each identity label to one or more reference embeddings.
Supported formats are chosen by file extension: .gob, .json, .yaml/.yml,
.sqlite/.sqlite3/.db.`,
}

func init() {
	rootCmd.AddCommand(dbCmd)
}
