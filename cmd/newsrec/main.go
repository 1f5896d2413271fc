package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"newsrec/internal/api"
	"newsrec/internal/artifacts"
	"newsrec/internal/config"
	"newsrec/internal/feedback"
	"newsrec/internal/index"
	"newsrec/internal/logging"
	"newsrec/internal/metrics"
	"newsrec/internal/service"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/newsrec/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid config")
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: os.Stderr})
	logging.Info().Str("config", cfgPath).Str("addr", cfg.Addr()).Msg("starting news recommender")

	// Artifacts and index are built once before the listener opens.
	corpus, err := artifacts.Load(cfg.Artifacts.MetaPath, cfg.Artifacts.EmbeddingsPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load artifacts")
	}
	rows, dim := corpus.Embeddings.Dims()
	metrics.SetCorpus(rows, dim)

	start := time.Now()
	idx, err := index.New(cfg.Index.Type, corpus.Embeddings, index.Options{
		ExcludeSelf: cfg.Index.ExcludeSelf,
		Workers:     cfg.Index.Workers,
		LeafSize:    cfg.Index.LeafSize,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build index")
	}
	logging.Info().
		Str("index", idx.Name()).
		Int("articles", rows).
		Int("dimension", dim).
		Bool("exclude_self", cfg.Index.ExcludeSelf).
		Dur("build", time.Since(start)).
		Msg("index ready")

	svc, err := service.NewRecommendService(corpus.Articles, idx, cfg.Recommend.TopK)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create recommend service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A failed connection is permanent for the process; feedback is then unavailable.
	store, err := feedback.Open(ctx, cfg)
	if err != nil {
		logging.Warn().Err(err).Str("backend", cfg.FeedbackBackend()).Msg("feedback store not connected")
		store = nil
	}
	sink := feedback.NewSink(store)
	logging.Info().Str("backend", sink.Backend()).Bool("available", sink.Available()).Msg("feedback sink ready")

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewServer(svc, sink, cfg).Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSecs)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := sink.Close(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("closing feedback store failed")
	}
}
