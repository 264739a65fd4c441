package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gwhandler "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/handler"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/rpc"
)

const defaultClientRateLimit = 100 // requests per minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting gateway",
		"port", cfg.Gateway.Port,
		"indexer", cfg.Gateway.IndexerAddr,
		"searcher", cfg.Gateway.SearcherAddr,
	)

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(pg, defaultClientRateLimit)
	if err := reg.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure registry schema", "error", err)
		os.Exit(1)
	}

	indexerClient, err := rpc.Dial(cfg.Gateway.IndexerAddr)
	if err != nil {
		slog.Warn("indexer unreachable at startup, will retry per call", "error", err)
		indexerClient = rpc.NewLazyClient(cfg.Gateway.IndexerAddr)
	}
	defer indexerClient.Close()

	searcherClient, err := rpc.Dial(cfg.Gateway.SearcherAddr)
	if err != nil {
		slog.Warn("searcher unreachable at startup, will retry per call", "error", err)
		searcherClient = rpc.NewLazyClient(cfg.Gateway.SearcherAddr)
	}
	defer searcherClient.Close()

	m := metrics.Default()
	h := gwhandler.New(cfg.Gateway, indexerClient, searcherClient, reg, pg)
	limiter := ratelimit.New(time.Minute)
	chain := router.New(h, reg, limiter, m, cfg.Server.WriteTimeout)

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("gateway listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway stopped")
}
