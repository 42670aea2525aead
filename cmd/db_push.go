package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/database/postgres"
)

var dbPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Publish a reference snapshot to PostgreSQL",
	Long: `Replace the reference_embeddings table with the contents of a snapshot file.
Servers started with DATABASE_URL and no SNAPSHOT_PATH load this table at startup.

Requires DATABASE_URL to be set and the pgvector extension to be available.

Examples:
  face-matcher db push --snapshot model/database.gob`,
	RunE: runDBPush,
}

func init() {
	dbCmd.AddCommand(dbPushCmd)

	dbPushCmd.Flags().String("snapshot", "", "Snapshot file to publish (default SNAPSHOT_PATH or model/database.gob)")
	dbPushCmd.Flags().Bool("dry-run", false, "Validate the snapshot without writing to PostgreSQL")
}

func runDBPush(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	path := mustGetString(cmd, "snapshot")
	if path == "" {
		path = cfg.Database.SnapshotPath
	}
	if path == "" {
		path = "model/database.gob"
	}

	db, err := database.LoadSnapshot(path)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d identities (%d references, %d-dim) from %s\n", db.Len(), db.Count(), db.Dim(), path)

	if mustGetBool(cmd, "dry-run") {
		fmt.Println("DRY RUN - nothing written")
		return nil
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	repo := postgres.NewReferenceRepository(pool)
	if err := repo.Replace(ctx, db); err != nil {
		return err
	}
	identities, references, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("PostgreSQL now holds %d identities with %d references\n", identities, references)
	return nil
}
