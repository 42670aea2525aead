package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/constants"
	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/fingerprint"
)

var dbBuildCmd = &cobra.Command{
	Use:   "build <dir>",
	Short: "Build a reference snapshot from a directory of labeled images",
	Long: `Build a reference snapshot by embedding every image under <dir>.

Each subdirectory of <dir> is one identity; its name is the label and every
image inside it becomes one reference embedding. Identities are stored in
directory name order, which is the order the matcher scans them in.

Examples:
  face-matcher db build ./faces
  face-matcher db build ./faces --output model/database.json --concurrency 8`,
	Args: cobra.ExactArgs(1),
	RunE: runDBBuild,
}

func init() {
	dbCmd.AddCommand(dbBuildCmd)

	dbBuildCmd.Flags().String("output", "", "Snapshot file to write (default SNAPSHOT_PATH or model/database.gob)")
	dbBuildCmd.Flags().Int("concurrency", constants.DefaultBuildConcurrency, "Number of parallel embedding requests")
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

// labelImages lists the image files of one identity directory.
type labelImages struct {
	Label string
	Paths []string
}

func (l labelImages) count() int { return len(l.Paths) }

// collectImages scans dir for identity subdirectories in name order.
func collectImages(dir string) ([]labelImages, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var groups []labelImages
	for _, e := range entries {
		label := strings.TrimSpace(e.Name())
		if !e.IsDir() || strings.HasPrefix(label, ".") {
			continue
		}
		if len(label) > constants.MaxNameLength {
			log.WithField("dir", e.Name()).Warn("skipping identity with overlong name")
			continue
		}

		files, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		group := labelImages{Label: label}
		for _, f := range files {
			if f.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			group.Paths = append(group.Paths, filepath.Join(dir, e.Name(), f.Name()))
		}
		if group.count() == 0 {
			log.WithField("label", label).Warn("skipping identity without images")
			continue
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// embedIdentities embeds every image with up to concurrency parallel requests.
// Results keep directory order; images that fail are skipped and counted, and
// identities left without embeddings are dropped.
func embedIdentities(ctx context.Context, embedder fingerprint.Embedder, groups []labelImages,
	concurrency int, onDone func()) ([]database.Identity, int) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([][][]float32, len(groups))
	for i, g := range groups {
		results[i] = make([][]float32, g.count())
	}

	var errorCount int
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for gi, g := range groups {
		for pi, path := range g.Paths {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				defer onDone()

				embedding, err := embedFile(ctx, embedder, path)
				if err != nil {
					log.WithError(err).WithField("path", path).Warn("failed to embed image")
					mu.Lock()
					errorCount++
					mu.Unlock()
					return
				}
				results[gi][pi] = embedding
			}()
		}
	}
	wg.Wait()

	var identities []database.Identity
	for gi, g := range groups {
		ident := database.Identity{Label: g.Label}
		for _, emb := range results[gi] {
			if emb != nil {
				ident.Embeddings = append(ident.Embeddings, emb)
			}
		}
		if len(ident.Embeddings) == 0 {
			log.WithField("label", g.Label).Warn("dropping identity: no image could be embedded")
			continue
		}
		identities = append(identities, ident)
	}
	return identities, errorCount
}

func embedFile(ctx context.Context, embedder fingerprint.Embedder, path string) ([]float32, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the scanned build directory
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return embedder.Embed(ctx, data)
}

func runDBBuild(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	output := mustGetString(cmd, "output")
	if output == "" {
		output = cfg.Database.SnapshotPath
	}
	if output == "" {
		output = "model/database.gob"
	}
	if _, err := database.FormatFromPath(output); err != nil {
		return err
	}

	groups, err := collectImages(args[0])
	if err != nil {
		return err
	}
	total := 0
	for _, g := range groups {
		total += g.count()
	}
	if total == 0 {
		return fmt.Errorf("no images found under %s", args[0])
	}
	fmt.Printf("Found %d images for %d identities\n", total, len(groups))

	embedder, err := fingerprint.NewEmbedder(&cfg.Model)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := embedder.Ready(ctx); err != nil {
		return fmt.Errorf("embedding model not ready: %w", err)
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Computing embeddings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	start := time.Now()
	identities, errorCount := embedIdentities(ctx, embedder, groups, mustGetInt(cmd, "concurrency"),
		func() { _ = bar.Add(1) })
	fmt.Println()

	db, err := database.NewReferenceDB(identities)
	if err != nil {
		return fmt.Errorf("building reference database: %w", err)
	}
	if err := database.SaveSnapshot(output, db); err != nil {
		return err
	}

	fmt.Printf("\nCompleted in %s: %d embedded, %d errors\n",
		time.Since(start).Round(time.Millisecond), db.Count(), errorCount)
	size := ""
	if st, err := os.Stat(output); err == nil {
		size = " (" + humanize.Bytes(uint64(st.Size())) + ")" //nolint:gosec // file sizes are non-negative
	}
	fmt.Printf("Wrote %d identities (%d-dim) to %s%s\n", db.Len(), db.Dim(), output, size)
	return nil
}
