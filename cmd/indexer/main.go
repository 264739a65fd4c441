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

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/handler"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/indexer/index"
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
	rpcPort := flag.Int("rpc-port", 9001, "RPC listen port")
	healthPort := flag.Int("health-port", 8080, "health/metrics HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service", "rpc_port", *rpcPort, "driver", cfg.Index.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()

	var (
		alloc index.IDAllocator
		docs  index.DocumentStore
		terms index.TermIndex
	)
	switch cfg.Index.Driver {
	case "memory":
		alloc = store.NewMemoryAllocator(0)
		docs = store.NewMemoryDocumentStore()
		terms = store.NewMemoryTermIndex()
		slog.Warn("memory driver active, index is not durable and not shared")
	default:
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()

		if err := store.EnsureSchema(ctx, pg); err != nil {
			slog.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}

		alloc = store.NewRedisAllocator(redisClient, cfg.Redis.CounterKey)
		docs = store.NewPostgresDocumentStore(pg)
		terms = store.NewPostgresTermIndex(pg)

		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pg.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	engine := indexer.New(alloc, docs, terms)

	invalidator := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer invalidator.Close()

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	events := collector.NewBatchCollector(analyticsProducer, 100, 5*time.Second)
	events.Start(ctx)

	h := handler.New(engine, invalidator, events)
	server := rpc.NewServer()
	h.RegisterMethods(server)

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

	slog.Info("indexer rpc server listening", "port", *rpcPort, "methods", server.MethodCount())
	if err := server.Serve(fmt.Sprintf(":%d", *rpcPort)); err != nil {
		slog.Error("rpc server error", "error", err)
		os.Exit(1)
	}

	slog.Info("indexer service stopped")
}
