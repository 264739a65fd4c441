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

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/rpc"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	rpcPort := flag.Int("rpc-port", 9002, "RPC listen port")
	healthPort := flag.Int("health-port", 8081, "health HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting searcher service", "rpc_port", *rpcPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	docs := store.NewPostgresDocumentStore(pg)
	terms := store.NewPostgresTermIndex(pg)
	exec := executor.New(terms, docs, cfg.Search.MaxTermConcurrency)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pg.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Search.CacheEnabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "cache disabled"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()

	h := handler.New(exec, queryCache, collector)
	server := rpc.NewServer()
	h.RegisterMethods(server)

	// Cache invalidation events from the indexer.
	if queryCache != nil {
		invalidationConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, h.HandleInvalidation())
		go func() {
			if err := invalidationConsumer.Start(ctx); err != nil {
				slog.Error("invalidation consumer error", "error", err)
			}
		}()
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("GET /health/live", checker.LiveHandler())
	healthMux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	healthServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", *healthPort),
		Handler:      healthMux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		slog.Info("health server listening", "addr", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		server.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = healthServer.Shutdown(shutdownCtx)
	}()

	slog.Info("searcher rpc server listening", "port", *rpcPort, "methods", server.MethodCount())
	if err := server.Serve(fmt.Sprintf(":%d", *rpcPort)); err != nil {
		slog.Error("rpc server error", "error", err)
		os.Exit(1)
	}

	slog.Info("searcher service stopped")
}
