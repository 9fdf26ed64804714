// Package main provides the entrypoint for the LineWatch refresh worker.
// It recomputes the shared snapshot on a schedule and on Pub/Sub triggers,
// and exposes a health endpoint for the platform health checks.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/linewatch/linewatch/internal/app"
	"github.com/linewatch/linewatch/internal/config"
	"github.com/linewatch/linewatch/internal/telemetry"
	"github.com/linewatch/linewatch/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "linewatch-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := cfg.Logger(serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Msg("starting LineWatch worker")

	if cfg.Cache.Backend != config.CacheBackendRedis {
		log.Warn().Msg("worker is using an in-process cache; API replicas will not see its snapshots")
	}

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("worker stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("worker stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	pipeline, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close snapshot cache")
		}
	}()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Interval:   cfg.WorkerInterval,
			Timeout:    pipeline.RefreshTimeout,
			StaleAfter: 3*cfg.WorkerInterval + pipeline.RefreshTimeout,
		},
		Refresher: pipeline.Service,
		Logger:    log.With().Str("job", worker.JobSnapshotRefresh).Logger(),
	})

	var subscriber *worker.PubSubHandler
	if cfg.PubSub.ProjectID != "" {
		subscriber, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Dispatcher:       worker.NewDispatcher(job, pipeline.Service, log),
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := subscriber.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      worker.NewHealthRouter(job, Version),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	var wg conc.WaitGroup
	wg.Go(func() { job.Start(ctx) })

	if subscriber != nil {
		wg.Go(func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		})
	}

	wg.Go(func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
			stop()
		}
	})

	<-ctx.Done()
	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	shutdownErr := server.Shutdown(shutdownCtx)

	wg.Wait()
	return shutdownErr
}
