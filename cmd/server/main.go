package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/wrongjunior/eventfeed/internal/config"
	"github.com/wrongjunior/eventfeed/internal/logger"
	"github.com/wrongjunior/eventfeed/internal/metrics"
	"github.com/wrongjunior/eventfeed/internal/repository"
	"github.com/wrongjunior/eventfeed/internal/service"
	transportServer "github.com/wrongjunior/eventfeed/internal/transport/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "eventfeed-server",
		Short:        "Event feed store: GitHub webhook intake and WebSocket push",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func run(cfg *config.Config) error {
	log := logger.New(cfg.LogLevel, cfg.LogConsole)

	db, err := repository.Open(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
		return err
	}
	defer db.Close()
	repo := repository.NewSQLiteRepository(db)
	if err := repo.Init(); err != nil {
		log.Error().Err(err).Msg("Failed to initialize repository")
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	feed := service.NewFeedService(repo, log, metrics.NewFeed(reg), cfg.SubscriberBuffer)
	if cfg.Retention.Schedule != "" {
		if err := feed.StartRetention(cfg.Retention.Schedule, cfg.Retention.Keep); err != nil {
			return err
		}
	}

	router := transportServer.SetupRouter(feed, log, transportServer.Options{
		WSPath:         cfg.WSPath,
		WebhookSecret:  cfg.WebhookSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		Gatherer:       reg,
	})
	httpServer := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ServerAddr).Str("ws_path", cfg.WSPath).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server error")
		feed.Shutdown()
		return err
	}

	log.Info().Msg("Shutting down server...")
	// Closing subscriptions first lets the write pumps end their connections.
	feed.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	log.Info().Msg("Server stopped")
	return nil
}
