package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/facematch"
)

var dbInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the identities of the reference database",
	RunE:  runDBInfo,
}

func init() {
	dbCmd.AddCommand(dbInfoCmd)

	dbInfoCmd.Flags().Bool("json", false, "Output as JSON")
	dbInfoCmd.Flags().String("snapshot", "", "Reference snapshot file; overrides SNAPSHOT_PATH")
}

// DBInfo is the JSON output of db info.
type DBInfo struct {
	Identities []DBIdentity `json:"identities"`
	Count      int          `json:"count"`
	References int          `json:"references"`
	Dim        int          `json:"dim"`
	Digest     string       `json:"digest"`
	Snapshot   string       `json:"snapshot,omitempty"`
	SizeBytes  uint64       `json:"size_bytes,omitempty"`
}

// DBIdentity describes one identity in DBInfo.
type DBIdentity struct {
	Label       string `json:"label"`
	DisplayName string `json:"display_name"`
	References  int    `json:"references"`
}

func runDBInfo(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg := config.Load()
	if cmd.Flags().Changed("snapshot") {
		cfg.Database.SnapshotPath = mustGetString(cmd, "snapshot")
	}

	db, err := loadReferenceDB(context.Background(), cfg)
	if err != nil {
		return err
	}

	info := DBInfo{
		Identities: make([]DBIdentity, 0, db.Len()),
		Count:      db.Len(),
		References: db.Count(),
		Dim:        db.Dim(),
		Digest:     db.Digest(),
		Snapshot:   cfg.Database.SnapshotPath,
	}
	if info.Snapshot != "" {
		if st, err := os.Stat(info.Snapshot); err == nil {
			info.SizeBytes = uint64(st.Size()) //nolint:gosec // file sizes are non-negative
		}
	}
	for _, ident := range db.Identities() {
		info.Identities = append(info.Identities, DBIdentity{
			Label:       ident.Label,
			DisplayName: facematch.DisplayName(ident.Label),
			References:  len(ident.Embeddings),
		})
	}

	if jsonOutput {
		return outputJSON(info)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tLABEL\tNAME\tREFERENCES")
	for i, ident := range info.Identities {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1, ident.Label, ident.DisplayName, ident.References)
	}
	w.Flush()

	fmt.Printf("\nIdentities: %s\n", humanize.Comma(int64(info.Count)))
	fmt.Printf("References: %s\n", humanize.Comma(int64(info.References)))
	fmt.Printf("Dimensions: %d\n", info.Dim)
	fmt.Printf("Digest:     %s\n", info.Digest)
	if info.Snapshot != "" {
		fmt.Printf("Snapshot:   %s (%s)\n", info.Snapshot, humanize.Bytes(info.SizeBytes))
	}
	return nil
}
