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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/price-relay/internal/auth"
	"github.com/rickgao/price-relay/internal/config"
	"github.com/rickgao/price-relay/internal/feed"
	"github.com/rickgao/price-relay/internal/logging"
	"github.com/rickgao/price-relay/internal/registry"
	"github.com/rickgao/price-relay/internal/relay"
	"github.com/rickgao/price-relay/internal/server"
	"github.com/rickgao/price-relay/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults only when empty)")
	envPath := flag.String("env", "", "path to .env file (default .env, optional)")
	certFile := flag.String("cert", "", "TLS certificate file (overrides server.cert_file)")
	keyFile := flag.String("key", "", "TLS key file (overrides server.key_file)")
	port := flag.Int("port", 0, "listen port (overrides server.port)")
	flag.Parse()

	if err := run(*configPath, *envPath, *certFile, *keyFile, *port); err != nil {
		slog.Error("relay failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, envPath, certFile, keyFile string, port int) error {
	if err := config.LoadEnvFile(envPath); err != nil {
		return err
	}

	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if certFile != "" {
		cfg.Server.CertFile = certFile
	}
	if keyFile != "" {
		cfg.Server.KeyFile = keyFile
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
	)

	feedURL, err := auth.FeedURL(cfg.Feed.URL, cfg.Feed.Token)
	if err != nil {
		return err
	}
	if cfg.Feed.Token == "" {
		logger.Warn("feed token is empty")
	}

	bo, err := feed.NewBackOff(cfg.Feed.ReconnectPolicy, cfg.Feed.ReconnectDelay, cfg.Feed.ReconnectMaxDelay)
	if err != nil {
		return err
	}

	reg := registry.New(cfg.Registry.Capacity)

	upstream := feed.New(feed.ClientConfig{
		URL:              feedURL,
		IdleTimeout:      cfg.Feed.IdleTimeout,
		PingTimeout:      cfg.Feed.PingTimeout,
		WriteTimeout:     cfg.Feed.WriteTimeout,
		HandshakeTimeout: cfg.Feed.HandshakeTimeout,
		BufferSize:       cfg.Feed.BufferSize,
	}, logger.With("component", "feed"), feed.WithBackOff(bo))

	coord := relay.NewCoordinator(reg, upstream, logger)
	upstream.SetConnectHandler(coord.Resync)
	upstream.SetPriceHandler(coord.Publish)

	srv := server.New(server.Config{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		Path:     cfg.Server.Path,
		CertFile: cfg.Server.CertFile,
		KeyFile:  cfg.Server.KeyFile,
		Conn: server.ConnConfig{
			WriteTimeout:   cfg.Downstream.WriteTimeout,
			PongWait:       cfg.Downstream.PongWait,
			PingPeriod:     cfg.Downstream.PingPeriod,
			MaxMessageSize: cfg.Downstream.MaxMessageSize,
			MaxPending:     cfg.Downstream.MaxPending,
		},
	}, coord, logger)

	logger.Info("configuration loaded",
		"listen", srv.Addr(),
		"tls", cfg.Server.TLSEnabled(),
		"feed_url", auth.RedactURL(feedURL),
		"capacity", cfg.Registry.Capacity,
		"reconnect_policy", cfg.Feed.ReconnectPolicy,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHealthHandler(upstream, reg, coord, cfg.Metrics.Path),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return upstream.Run(gctx)
	})

	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("relay running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("relay stopped")
	return nil
}
