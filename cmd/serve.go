package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/constants"
	"github.com/kozaktomas/face-matcher/internal/fingerprint"
	"github.com/kozaktomas/face-matcher/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Matcher web server.
The reference database is loaded once and the embedding model is probed
before the server starts accepting uploads.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on; overrides WEB_PORT")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to; overrides WEB_HOST")
	serveCmd.Flags().String("upload-dir", "", "Directory for uploaded images; overrides UPLOAD_DIR")
	addSourceFlags(serveCmd)
}

// applyServeFlags copies explicitly set web flags over the environment config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
	if cmd.Flags().Changed("upload-dir") {
		cfg.Web.UploadDir = mustGetString(cmd, "upload-dir")
	}
	applySourceFlags(cmd, cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
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
	fmt.Printf("Checking embedding model at %s...\n", cfg.Model.URL)
	readyCtx, readyCancel := context.WithTimeout(ctx, cfg.Model.Timeout)
	err = embedder.Ready(readyCtx)
	readyCancel()
	if err != nil {
		return fmt.Errorf("embedding model not ready: %w", err)
	}

	if err := os.MkdirAll(cfg.Web.UploadDir, 0o755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	server, err := web.NewServer(cfg, db, embedder, matcher)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Matcher on http://%s:%d (%d identities, %d references)\n",
		cfg.Web.Host, cfg.Web.Port, db.Len(), db.Count())
	fmt.Println("Press Ctrl+C to stop")

	start := time.Now()
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	fmt.Printf("Server stopped after %s\n", time.Since(start).Round(time.Second))
	return nil
}
