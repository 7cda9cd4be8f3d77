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

	"auctionhouse/internal/config"
	"auctionhouse/internal/feed"
	"auctionhouse/internal/handler"
	"auctionhouse/internal/service"
	"auctionhouse/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Stores.
	traderStore := store.NewTraderStore()
	txStore := store.NewTransactionStore()

	// Event feed: websocket hub always on, Kafka only when brokers are
	// configured.
	hub := feed.NewHub()
	sink := feed.Fanout{hub, feed.LogSink{Logger: logger}}
	var kafkaSink *feed.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink = feed.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaTimeout, logger)
		sink = append(sink, kafkaSink)
		logger.Info("kafka sink enabled", slog.String("topic", cfg.KafkaTopic))
	}

	// Scheduler for timed-clearing markets.
	scheduler := service.NewClearingScheduler(cfg.ClearingInterval, logger)

	// Services.
	traderSvc := service.NewTraderService(traderStore)
	marketSvc := service.NewMarketService(traderStore, txStore, sink, scheduler, logger)

	// Router.
	router := handler.NewRouter(traderSvc, marketSvc, hub, cfg.FeedBuffer, logger)

	// Start the clearing scheduler with a cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops scheduler),
	// flush Kafka.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Error("kafka close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}
