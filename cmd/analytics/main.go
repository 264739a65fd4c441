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

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8083, "HTTP listen port")
	snapshotInterval := flag.Duration("snapshot-interval", 5*time.Minute, "stats snapshot interval")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", *port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var agg *analytics.Aggregator
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents,
		func(ctx context.Context, key []byte, value []byte) error {
			return analytics.HandleEvent(agg)(ctx, key, value)
		})
	agg = analytics.NewAggregator(consumer)

	go func() {
		if err := agg.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()

	// Snapshots survive restarts; best-effort if postgres is down.
	if pg, err := postgres.New(cfg.Postgres); err != nil {
		slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
	} else {
		defer pg.Close()
		snapshots := aggregator.NewStore(pg)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Warn("snapshot schema setup failed, snapshots disabled", "error", err)
		} else {
			snapshots.StartPeriodicSave(ctx, agg, *snapshotInterval)
		}
	}

	h := analytics.NewHandler(agg)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"analytics"}`))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      mux,
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
