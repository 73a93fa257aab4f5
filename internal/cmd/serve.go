package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jayminwest/kota-gateway/internal/config"
	"github.com/jayminwest/kota-gateway/internal/server"
	"github.com/jayminwest/kota-gateway/internal/trigger"
)

var (
	servePort         int
	serveGlobalRPM    int
	servePerSourceRPM int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway with webhook ingress and the daily digest",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP server port (default from config)")
	serveCmd.Flags().IntVar(&serveGlobalRPM, "webhook-rpm", 600, "global webhook requests/minute")
	serveCmd.Flags().IntVar(&servePerSourceRPM, "webhook-source-rpm", 120, "per-source webhook requests/minute")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	pipeline, store, manager, journalStore, err := buildPipeline(cfg, true)
	if err != nil {
		return err
	}
	if journalStore != nil {
		defer journalStore.Close()
	}

	sources, err := trigger.LoadSources(cfg.SourcesFile)
	if err != nil {
		return fmt.Errorf("loading sources: %w", err)
	}
	if sources == nil {
		log.Warn().Msg("no sources file configured - accepting events from any source")
	}

	limiter := trigger.NewRateLimiter(serveGlobalRPM, servePerSourceRPM)
	webhookHandler := trigger.NewWebhookHandler(pipeline, sources, limiter)

	var scheduler *trigger.DigestScheduler
	if journalStore != nil && cfg.DigestCron != "" {
		scheduler = trigger.NewDigestScheduler(journalStore, manager, store)
		if err := scheduler.Register(cfg.DigestCron); err != nil {
			return fmt.Errorf("registering digest schedule: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	apiKeys := server.ParseAPIKeys(os.Getenv("KOTA_API_KEYS"))
	if len(apiKeys) == 0 {
		log.Warn().Msg("KOTA_API_KEYS not set - all /api endpoints will return 401")
	}

	srv := server.NewServer(webhookHandler, store, journalStore, apiKeys)

	port := servePort
	if port == 0 {
		port = cfg.Port
	}
	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Strs("channels", manager.Channels()).
		Int("sources", len(sources)).
		Bool("digest", scheduler != nil).
		Msg("kota_gateway_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
