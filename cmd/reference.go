package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/database/postgres"
	"github.com/kozaktomas/face-matcher/internal/facematch"
)

// loadReferenceDB loads the reference database from the configured snapshot
// file, or from PostgreSQL when no snapshot is configured.
func loadReferenceDB(ctx context.Context, cfg *config.Config) (*database.ReferenceDB, error) {
	var source database.Source
	switch {
	case cfg.Database.SnapshotPath != "":
		log.WithField("path", cfg.Database.SnapshotPath).Info("loading reference snapshot")
		source = database.SnapshotSource{Path: cfg.Database.SnapshotPath}
	case cfg.Database.UsePostgres():
		log.Info("loading reference embeddings from PostgreSQL")
		// Read-only: the table is created and filled by db push.
		pool, err := postgres.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer pool.Close()
		source = postgres.NewReferenceRepository(pool)
	default:
		return nil, errors.New("SNAPSHOT_PATH or DATABASE_URL is required")
	}

	db, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"identities": db.Len(),
		"references": db.Count(),
		"dim":        db.Dim(),
	}).Info("reference database loaded")
	return db, nil
}

// newMatcher creates the matcher selected by cfg.Database.Matcher.
func newMatcher(cfg *config.Config, db *database.ReferenceDB) (facematch.Matcher, error) {
	switch cfg.Database.Matcher {
	case config.MatcherLinear, "":
		return facematch.NewLinearMatcher(db), nil
	case config.MatcherHNSW:
		idx, loaded, err := database.BuildOrLoadHNSW(cfg.Database.HNSWIndexPath, db)
		if idx == nil {
			return nil, fmt.Errorf("building HNSW index: %w", err)
		}
		if err != nil {
			log.WithError(err).Warn("HNSW index built but not persisted")
		}
		log.WithFields(log.Fields{
			"nodes":  idx.Count(),
			"loaded": loaded,
			"path":   cfg.Database.HNSWIndexPath,
		}).Info("HNSW index ready")
		return facematch.NewHNSWMatcher(db, idx), nil
	default:
		return nil, fmt.Errorf("unknown matcher %q", cfg.Database.Matcher)
	}
}

// outputJSON writes data to stdout as indented JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
