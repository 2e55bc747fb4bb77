package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kalambet/christopher/internal/config"
	"github.com/kalambet/christopher/internal/logging"
	"github.com/kalambet/christopher/internal/memory"
	"github.com/kalambet/christopher/internal/ollama"
	"github.com/kalambet/christopher/internal/pipeline"
	"github.com/kalambet/christopher/internal/prompt"
	"github.com/kalambet/christopher/internal/storage"
)

// app is the fully wired assistant shared by the menu, ask, serve and mcp commands.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	client    *ollama.Client
	store     *storage.Store
	assistant *pipeline.Assistant
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// setup loads config and installs the process-wide logger.
func setup() (config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, err
	}

	logger := logging.New(
		logging.WithLevel(level),
		logging.WithFormat(cfg.Log.Format),
		logging.WithWriter(os.Stderr),
	)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newApp(cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	client := ollama.New(cfg.Ollama.BaseURL, logger)
	router := prompt.NewRouter(client, prompt.Options{
		CodeModel:         cfg.Ollama.CodeModel,
		AuxModel:          cfg.Ollama.AuxModel,
		System:            cfg.Generation.SystemPrompt,
		CodeNumPredict:    cfg.Generation.CodeNumPredict,
		ExplainNumPredict: cfg.Generation.ExplainNumPredict,
		Temperature:       cfg.Generation.Temperature,
		Stream:            cfg.Generation.Stream,
	}, logger)
	embedder := memory.NewEmbedder(client, cfg.Ollama.EmbedModel, cfg.Memory.Dimension, logger)
	writer := memory.NewWriter(embedder, store, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		client:    client,
		store:     store,
		assistant: pipeline.NewAssistant(router, client, store, writer, logger,
			pipeline.WithMaxConcurrent(cfg.Generation.MaxConcurrent)),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing storage", "error", err)
	}
}

// ensureReady checks the backend and pulls missing models, writing
// progress to w.
func (a *app) ensureReady(ctx context.Context, w io.Writer) error {
	models := []string{a.cfg.Ollama.CodeModel, a.cfg.Ollama.AuxModel, a.cfg.Ollama.EmbedModel}
	return ollama.EnsureReady(ctx, a.client, models, a.cfg.Ollama.AuxModel, w)
}
