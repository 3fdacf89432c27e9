// Command limiters-demo exercises both coordination primitives against a
// real Redis, the same way the teacher's GoRateLimiter had a main package
// gluing its limiter and monitor together. Run several copies of this
// binary against the same Redis to see the fleet-wide limits hold.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"go-limiters/internal/config"
	"go-limiters/internal/health"
	"go-limiters/internal/localrate"
	"go-limiters/internal/metrics"
	"go-limiters/internal/redisx"
	"go-limiters/semaphore"
	"go-limiters/tokenbucket"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	workers := flag.Int("workers", 10, "number of concurrent demo workers")
	metricsAddr := flag.String("metrics-addr", ":9100", "address for the /metrics endpoint")
	simulateHealth := flag.Bool("simulate-health", false, "drive the local fallback pacer from a simulated health source")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger := setupLogger(&cfg.Logging)
	logger.Info().Msg("starting limiters-demo")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client := redisx.New(cfg.Redis.URL,
		redisx.WithPoolSize(cfg.Redis.ConnectionPoolSize),
		redisx.WithLogger(logger),
		redisx.WithMetrics(m),
	)
	defer client.Close()

	sem, err := semaphore.New(client, cfg.Semaphore.Name,
		semaphore.WithCapacity(cfg.Semaphore.Capacity),
		semaphore.WithMaxSleep(cfg.Semaphore.MaxSleep),
		semaphore.WithExpiry(cfg.Semaphore.Expiry),
		semaphore.WithLogger(logger),
		semaphore.WithMetrics(m),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("construct semaphore")
	}

	tb, err := tokenbucket.New(client, cfg.TokenBucket.Name,
		tokenbucket.WithCapacity(cfg.TokenBucket.Capacity),
		tokenbucket.WithRefillFrequency(cfg.TokenBucket.RefillFrequency),
		tokenbucket.WithRefillAmount(cfg.TokenBucket.RefillAmount),
		tokenbucket.WithMaxSleep(cfg.TokenBucket.MaxSleep),
		tokenbucket.WithLogger(logger),
		tokenbucket.WithMetrics(m),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("construct token bucket")
	}

	logger.Info().Stringer("semaphore", sem).Stringer("token_bucket", tb).Msg("limiters ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fallback *localrate.Limiter
	if *simulateHealth {
		fallback = localrate.New(float64(cfg.TokenBucket.RefillAmount), cfg.TokenBucket.Capacity)
		monitor := localrate.NewMonitor(fallback, health.NewSimulatedSource(1), time.Second, logger)
		go monitor.Run(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorker(ctx, id, sem, tb, fallback, logger)
		}(i)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	wg.Wait()
	logger.Info().Msg("stopped")
}

func runWorker(ctx context.Context, id int, sem *semaphore.Semaphore, tb *tokenbucket.TokenBucket, fallback *localrate.Limiter, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if fallback != nil && !fallback.Allow() {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		tbGuard, err := tb.Acquire(ctx)
		if err != nil {
			logger.Warn().Int("worker", id).Err(err).Msg("token bucket acquire failed")
			continue
		}

		semGuard, err := sem.Acquire(ctx)
		if err != nil {
			if releaseErr := tbGuard.Release(ctx); releaseErr != nil {
				err = errors.Join(err, releaseErr)
			}
			logger.Warn().Int("worker", id).Err(err).Msg("semaphore acquire failed")
			continue
		}

		logger.Debug().Int("worker", id).Msg("entering critical section")
		time.Sleep(10 * time.Millisecond)

		var releaseErr error
		if err := semGuard.Release(ctx); err != nil {
			releaseErr = errors.Join(releaseErr, err)
		}
		if err := tbGuard.Release(ctx); err != nil {
			releaseErr = errors.Join(releaseErr, err)
		}
		if releaseErr != nil {
			logger.Warn().Int("worker", id).Err(releaseErr).Msg("guard release failed")
		}
	}
}

func setupLogger(cfg *config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
