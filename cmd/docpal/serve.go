package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docpal/docpal/internal/config"
	"github.com/docpal/docpal/internal/logging"
	"github.com/docpal/docpal/internal/server"
	"github.com/docpal/docpal/internal/store"
)

// newServeCommand runs the HTTP API server.
func newServeCommand() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat persistence API and completion proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			if cfg.OpenRouterAPIKey == "" {
				return errors.New("DOCPAL_OPENROUTER_API_KEY is required for serve")
			}
			logger := logging.New(logging.ParseEnvironment(cfg.Env))

			profiles, err := config.LoadAssistants(cfg.AssistantsPath)
			if err != nil {
				return err
			}
			chatStore, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer chatStore.Close()

			api := &server.Server{
				Store:           chatStore,
				Assistants:      config.BuildAll(profiles),
				UpstreamBaseURL: cfg.OpenRouterBaseURL,
				UpstreamAPIKey:  cfg.OpenRouterAPIKey,
				AdminKey:        cfg.AdminKey,
				RatePerMinute:   cfg.RateLimitPerMinute,
				Logger:          logger,
			}
			httpServer := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           api.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errs := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", cfg.ListenAddr).Int("assistants", len(profiles)).Msg("docpal listening")
				errs <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errs:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serve: %w", err)
			case <-ctx.Done():
				logger.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "bind address (overrides DOCPAL_LISTEN_ADDR)")
	return cmd
}
