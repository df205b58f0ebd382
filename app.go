package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"idea2blog/config"
	"idea2blog/generator"
	"idea2blog/pipeline"
	"idea2blog/publisher"
	"idea2blog/session"
)

// app is the wired pipeline shared by the serve and chat commands.
type app struct {
	cfg     config.Config
	store   *session.Store
	orch    *pipeline.Orchestrator
	pub     *publisher.Publisher
	archive publisher.Archive
	logger  *zap.Logger
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func buildLLM(ctx context.Context, cfg config.Config) (generator.LLMClient, error) {
	settings := cfg.LLMSettings()
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		return generator.NewGeminiLLM(ctx, &settings)
	case config.ProviderOpenAI:
		return generator.NewOpenAILLMFromConfig(&settings)
	case config.ProviderDeepSeek:
		// DeepSeek speaks the OpenAI protocol behind its own base_url.
		if settings.BaseURL == "" {
			return nil, errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(&settings)
	case config.ProviderMock:
		narration, blog, err := cfg.Schemas()
		if err != nil {
			return nil, err
		}
		return generator.MockLLM{Narration: narration, Blog: blog}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	llm, err := buildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gw, err := generator.NewGateway(llm, cfg.GatewayConfig(), logger)
	if err != nil {
		return nil, err
	}
	narration, blog, err := cfg.Schemas()
	if err != nil {
		return nil, err
	}
	store := session.NewStore(session.Options{TTL: cfg.Sessions.TTL, Logger: logger})
	orch, err := pipeline.New(pipeline.Options{
		Store:        store,
		Model:        gw,
		Narration:    narration,
		Blog:         blog,
		Prompts:      cfg.PipelinePrompts(),
		HistoryTurns: cfg.Sessions.HistoryContextTurns,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	archive, err := publisher.OpenArchive(cfg.Archive.Kind, cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	logger.Info("pipeline ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLMSettings().Model),
		zap.String("archive", cfg.Archive.Kind))
	return &app{
		cfg:     cfg,
		store:   store,
		orch:    orch,
		pub:     publisher.New(archive, logger),
		archive: archive,
		logger:  logger,
	}, nil
}

func (a *app) Close() error {
	if a.archive == nil {
		return nil
	}
	return a.archive.Close()
}
