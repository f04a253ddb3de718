package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/quantbox/chainfeed/internal/api"
	"github.com/quantbox/chainfeed/internal/chain"
	"github.com/quantbox/chainfeed/internal/config"
	"github.com/quantbox/chainfeed/internal/stream"
	"github.com/quantbox/chainfeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/chainserver.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting chainserver",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"rest_url", cfg.API.RestURL,
		"ws_url", cfg.API.WSURL,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiClient := api.NewClient(
		cfg.API.RestURL,
		cfg.API.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.Stream.ReconnectBaseDelay),
	)

	conn := stream.NewConn(stream.ConnConfig{
		URL:                  cfg.API.WSURL,
		APIKey:               cfg.API.APIKey,
		ConnectTimeout:       cfg.Stream.ConnectTimeout,
		SubscribeInterval:    cfg.Stream.SubscribeInterval,
		ReconnectBaseDelay:   cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Stream.ReconnectMaxDelay,
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
		PingTimeout:          cfg.Stream.PingTimeout,
		WriteTimeout:         cfg.Stream.WriteTimeout,
		BufferSize:           cfg.Stream.BufferSize,
	}, logger)

	if err := conn.Connect(ctx); err != nil {
		logger.Error("failed to connect to market stream", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("market stream connected", "state", conn.State())

	registry := chain.NewRegistry(conn, apiClient, logger)

	srv := newServer(cfg, registry, apiClient, conn, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.routes(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("chainserver exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("chainserver stopped")
}
