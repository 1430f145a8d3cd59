package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/dgallion1/novelsplit/internal/api"
	"github.com/dgallion1/novelsplit/internal/chunker"
	"github.com/dgallion1/novelsplit/internal/config"
	"github.com/dgallion1/novelsplit/internal/extract"
	"github.com/dgallion1/novelsplit/internal/logging"
	"github.com/dgallion1/novelsplit/internal/pathstore"
	"github.com/dgallion1/novelsplit/internal/pipeline"
	"github.com/dgallion1/novelsplit/internal/store"
)

func main() {
	cfg := config.Load()

	log, logCloser, err := logging.New(os.Stdout, logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		logging.Default().Error("invalid logging configuration", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	var (
		llm   extract.Client
		stats *extract.LLMStats
	)
	if cfg.HasLLM() {
		stats = extract.NewLLMStats(time.Hour)
		opts := []extract.Option{extract.WithStats(stats)}
		if cfg.LLMBaseURL != "" {
			opts = append(opts, extract.WithBaseURL(cfg.LLMBaseURL))
		}
		llm, err = extract.NewClient(cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMModel, opts...)
		if err != nil {
			log.Error("invalid llm configuration", "error", err)
			os.Exit(1)
		}
		defer llm.Close()
	}

	sinks, ps, err := openSinks(ctx, cfg)
	if err != nil {
		log.Error("open sink", "sink", cfg.Sink, "error", err)
		os.Exit(1)
	}
	if ps != nil {
		defer ps.Close()
	}

	// Initialize pipeline.
	splitter := pipeline.NewSplitter(llm, log, chunker.Config{MaxRunes: cfg.ChunkMaxRunes}, cfg.MaxConcurrentLLM)
	orch := pipeline.NewOrchestrator(cfg, splitter, sinks, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, llm, stats, ps, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting novelsplit", "port", cfg.Port, "sink", cfg.Sink, "llm", cfg.HasLLM())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openSinks builds the chapter sink factory for cfg.Sink. The pathstore client
// is returned as well so the API can list stored novels.
func openSinks(ctx context.Context, cfg config.Config) (store.Factory, *pathstore.Client, error) {
	switch cfg.Sink {
	case config.SinkDir:
		return store.DirFactory(afero.NewOsFs(), cfg.OutputDir), nil, nil
	case config.SinkPathstore:
		ps := pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		return store.PathstoreFactory(ps), ps, nil
	case config.SinkMinio:
		ms, err := store.NewMinioStore(ctx, store.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
			Bucket:    cfg.MinioBucket,
			Prefix:    cfg.MinioPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return ms.Factory(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
}
