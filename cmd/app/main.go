package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/examparser/internal/ai"
	cfgpkg "github.com/local/examparser/internal/config"
	logpkg "github.com/local/examparser/internal/logger"
	"github.com/local/examparser/internal/metrics"
	"github.com/local/examparser/internal/pipeline"
	"github.com/local/examparser/internal/server"
	"github.com/local/examparser/internal/storage"
	"github.com/local/examparser/internal/store"
)

func main() {
	cfg := cfgpkg.Load()

	if err := logpkg.Init(logpkg.OptionsFromConfig(cfg)); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
	defer logpkg.Close()
	metrics.Init()

	ctx := context.Background()

	client, err := ai.New(ctx, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init language service client")
	}

	// Status store
	var status store.Store = store.NewMemory()
	if cfg.Redis.URL != "" {
		rs, err := store.NewRedisStatus(ctx, cfg.Redis.URL, cfg.Redis.StatusTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init redis status store")
		}
		defer rs.Close()
		status = rs
	}

	deps, err := pipeline.FromConfig(cfg, client, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid question configuration")
	}
	deps.Status = status
	if cfg.Storage.Bucket != "" {
		s3c, err := storage.NewS3Client(ctx, cfg.Storage)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init S3 client")
		}
		deps.Publisher = s3c
	}

	srv := server.New(server.Dependencies{
		Runner: pipeline.New(deps),
		Status: status,
		Config: cfg.Server,
	})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("provider", client.Name()).
			Bool("redis", cfg.Redis.URL != "").
			Bool("s3", deps.Publisher != nil).
			Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
