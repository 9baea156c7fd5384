package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/incident-triage/internal/api"
	"github.com/Ashfaaq98/incident-triage/internal/ingest"
	"github.com/Ashfaaq98/incident-triage/internal/store"
)

var (
	serveToken    string
	serveWatchDir string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report API and optional drop-folder ingestion",
	Long: `Start the Incident-Triage server which includes:

1. HTTP API for uploading telemetry batches and browsing reports
2. SQLite-backed report history
3. Optional drop-folder watcher for file-based sensors
4. Prometheus metrics on /metrics

The serve command runs until interrupted (Ctrl+C).

Examples:
  # Start the API on the default bind address
  incident-triage serve

  # Require a bearer token and watch a drop folder
  incident-triage serve --token s3cret --watch-dir /var/spool/telemetry`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveToken, "token", "", "Bearer token required on API requests (optional)")
	serveCmd.Flags().StringVar(&serveWatchDir, "watch-dir", "", "Drop folder to watch for telemetry batch files (optional)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	if serveToken != "" {
		config.Server.Token = serveToken
	}
	if serveWatchDir != "" {
		config.Ingest.Dir = serveWatchDir
	}

	logger := log.New(os.Stderr, "[serve] ", log.LstdFlags)
	logger.Println("Starting Incident-Triage server")

	logger.Printf("Using database at %s", config.Database.Path)
	st, err := store.NewStore(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	pipe, closeLookup, err := buildPipeline(config, logger)
	if err != nil {
		return err
	}
	defer closeLookup()

	server := api.NewServer(pipe, st, api.Options{
		Bind:   config.Server.Bind,
		Token:  config.Server.Token,
		RPS:    config.Server.RPS,
		Burst:  config.Server.Burst,
		Logger: logger,
	})
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	errCh := make(chan error, 1)
	if config.Ingest.Dir != "" {
		fi := ingest.NewFolderIngestor(pipe, st, ingest.FolderOptions{
			Dir:    config.Ingest.Dir,
			Watch:  config.Ingest.Watch,
			Logger: logger,
		})
		go func() {
			if err := fi.Run(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("drop-folder ingestion failed: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Println("Shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
