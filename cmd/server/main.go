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

	_ "transcription-service/docs"
	"transcription-service/internal/config"
	"transcription-service/internal/engine"
	"transcription-service/internal/repository/jsonfile"
	"transcription-service/internal/service"
	httptransport "transcription-service/internal/transport/http"
	"transcription-service/internal/worker"
)

// @title Transcription Service API
// @version 1.0
// @description Accepts media files for transcription/translation and serves the results.
func main() {
	cfg := config.Load()
	log := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo := jsonfile.New(cfg.SnapshotPath, log)
	queue := service.NewFIFOQueue()

	loader := engine.NewCLILoader(cfg.Python, log)
	engines := engine.NewCache(loader)

	processor := worker.NewProcessor(repo, engines, cfg.ResultsDir, log)
	loop := worker.NewLoop(queue, processor, log)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		loop.Run(ctx)
	}()

	jobSvc := service.NewJobService(repo, queue, log)
	handler := httptransport.NewHandler(jobSvc)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.Routes(handler, log),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	// Let the worker notice the cancelled context and finish its current
	// job before exiting.
	<-workerDone
	log.Info().Msg("server stopped")
}

func newLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Logger()

	if appEnv == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return log
}
