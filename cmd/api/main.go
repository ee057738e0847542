package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canonurl/internal/config"
	"canonurl/internal/logger"
	"canonurl/internal/metrics"
	"canonurl/internal/ratelimit"
	"canonurl/internal/server"
)

func main() {
	cfg, err := config.Load(os.Getenv("URLCANON_CONFIG"))
	if err != nil {
		logger.New("info").Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	metrics.MustRegister()

	limiter := ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	srv, err := server.New(cfg, limiter, log)
	if err != nil {
		log.Error("server_init_failed", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pruneLimiter(ctx, limiter)

	go func() {
		log.Info("api_listen", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Error("api_shutdown_failed", "error", err)
	}
	log.Info("api_shutdown")
}

func pruneLimiter(ctx context.Context, limiter *ratelimit.Limiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
