package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scribecast/scribecast/internal/analysis"
	"github.com/scribecast/scribecast/internal/broadcast"
	"github.com/scribecast/scribecast/internal/config"
	"github.com/scribecast/scribecast/internal/deepgram"
	"github.com/scribecast/scribecast/internal/llm"
	"github.com/scribecast/scribecast/internal/server"
	"github.com/scribecast/scribecast/internal/session"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}
	for _, warning := range warnings {
		logger.Warn(warning)
	}

	logger.Info("scribecast starting", "listen_addr", cfg.ListenAddr)

	hub := broadcast.NewHub(logger)
	var publisher broadcast.Publisher = hub
	var kafkaPub *broadcast.Kafka
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = broadcast.NewKafka(cfg.KafkaBrokers, cfg.KafkaTranscriptionTopic, cfg.KafkaAnalysisTopic, logger)
		publisher = broadcast.Multi{hub, kafkaPub}
		logger.Info("kafka publisher enabled",
			"brokers", cfg.KafkaBrokers,
			"transcription_topic", cfg.KafkaTranscriptionTopic,
			"analysis_topic", cfg.KafkaAnalysisTopic,
		)
	}

	analyzerFactory := buildAnalyzerFactory(cfg, publisher, logger)

	dial := func(ctx context.Context, sessionID string, sink session.Sink) (session.Upstream, error) {
		opts := deepgram.DefaultOptions()
		opts.APIKey = cfg.DeepgramAPIKey
		opts.URL = cfg.EngineURL
		opts.Model = cfg.EngineModel
		opts.Language = cfg.EngineLanguage
		opts.SampleRate = cfg.EngineSampleRate
		opts.MinSpeakers = cfg.EngineMinSpeakers
		opts.MaxSpeakers = cfg.EngineMaxSpeakers
		opts.Logger = logger.With("session_id", sessionID)
		return deepgram.Dial(ctx, opts, sink)
	}

	store := session.NewStore(session.Config{
		IdleTimeout: cfg.ParsedIdleTimeout(),
		PauseSplit:  cfg.PauseSplit,
		PauseGap:    cfg.PauseGap,
	}, dial, publisher, analyzerFactory, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reaper := session.NewReaper(store, cfg.ParsedReapInterval(), logger)
	go reaper.Run(ctx)

	handler := server.Handler(store, hub, server.Options{
		Logger:   logger,
		Warnings: func() []string { return warnings },
	})
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}

	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("scribecast shutting down")
	cancel()

	store.Close()
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Warn("kafka close failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
}

// buildAnalyzerFactory wires the live analysis trigger, or returns nil
// when no usable model and key are configured.
func buildAnalyzerFactory(cfg config.Config, publisher broadcast.Publisher, logger *slog.Logger) session.AnalyzerFactory {
	apiKey := cfg.AnalysisAPIKey()
	if apiKey == "" {
		return nil
	}

	provider, model, err := llm.ParseModel(cfg.AnalysisModel)
	if err != nil {
		logger.Warn("invalid analysis model, analysis disabled", "model", cfg.AnalysisModel, "error", err)
		return nil
	}
	client, err := llm.NewClient(provider, apiKey, model)
	if err != nil {
		logger.Warn("analysis client init failed, analysis disabled", "error", err)
		return nil
	}
	logger.Info("live analysis enabled", "model", cfg.AnalysisModel)

	triggerCfg := analysis.Config{
		MinNewChars: cfg.AnalysisMinNewChars,
		Temperature: cfg.AnalysisTemperature,
		MaxTokens:   cfg.AnalysisMaxTokens,
		Timeout:     cfg.ParsedAnalysisTimeout(),
	}
	return func() session.Analyzer {
		return analysis.NewTrigger(triggerCfg, client, publisher, logger)
	}
}
