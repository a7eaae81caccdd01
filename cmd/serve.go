package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/lost-found/internal/config"
	"github.com/kozaktomas/lost-found/internal/database"
	"github.com/kozaktomas/lost-found/internal/embedding"
	"github.com/kozaktomas/lost-found/internal/metrics"
	"github.com/kozaktomas/lost-found/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the Lost & Found API server.
The server accepts lost and found reports, runs face matching in the
background after every found report and exposes the admin review endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// saveCandidateIndex persists the candidate index during shutdown.
func saveCandidateIndex(backend *database.Backend, log *zap.Logger) {
	if backend.Index == nil || !backend.Index.IsIndexEnabled() {
		return
	}
	if err := backend.Index.SaveIndex(); err != nil {
		log.Warn("failed to save candidate index", zap.Error(err))
		return
	}
	log.Info("candidate index saved", zap.Int("descriptors", backend.Index.IndexCount()))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Web.Host = host
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	extractor := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.DescriptorDim)
	matcher := newMatcher(cfg, backend, log)
	server := web.NewServer(cfg, backend, extractor, matcher, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
		saveCandidateIndex(backend, log)
	}()

	fmt.Printf("Starting Lost & Found API on http://%s:%d/api/v1\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Printf("Face match threshold: %.2f (re-read from %s on every decision)\n", config.MatchThreshold(), config.ThresholdEnv)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
