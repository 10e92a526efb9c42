package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"persona_ad_studio/catalog"
	"persona_ad_studio/config"
	"persona_ad_studio/generator"
	"persona_ad_studio/httpclient"
	"persona_ad_studio/persona"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	refiner  *generator.Refiner
	pipeline *persona.Pipeline
	variator *persona.Variator
	catalog  *catalog.Catalog
}

func buildApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(logOut, cfg.LogLevel)

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.CatalogFile, cfg.AdsDir)
	if err != nil {
		return nil, err
	}

	pricing := generator.Pricing{
		ImageOperation:  cfg.Pricing.ImageOperation,
		PromptPer1K:     cfg.Pricing.PromptPer1K,
		CompletionPer1K: cfg.Pricing.CompletionPer1K,
	}
	refiner, err := generator.NewRefiner(provider, generator.RefinerOptions{
		ImageModel:     cfg.LLM.ImageModel,
		EvalModel:      cfg.LLM.EvalModel,
		Size:           cfg.Refine.ImageSize,
		InitialQuality: cfg.Refine.InitialQuality,
		EditQuality:    cfg.Refine.EditQuality,
		MaxAttempts:    cfg.Refine.MaxAttempts,
		Pricing:        pricing,
		Approval:       generator.NewApprovalClassifier(cfg.Refine.ApprovalMatch, cfg.Refine.ApprovalToken),
		Logger:         logger.With("component", "refiner"),
	})
	if err != nil {
		return nil, err
	}
	pipeline, err := persona.NewPipeline(provider, persona.PipelineOptions{
		AnalysisModel: cfg.LLM.AnalysisModel,
		TextModel:     cfg.LLM.Model,
		Logger:        logger.With("component", "copy_pipeline"),
	})
	if err != nil {
		return nil, err
	}
	variator, err := persona.NewVariator(provider, persona.VariatorOptions{
		ImageModel:     cfg.LLM.ImageModel,
		Size:           cfg.Refine.ImageSize,
		DefaultQuality: cfg.Pricing.VariationDefaultTier,
		CostPerEdit:    cfg.Pricing.VariationImageEdit,
		Logger:         logger.With("component", "variator"),
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      logger,
		refiner:  refiner,
		pipeline: pipeline,
		variator: variator,
		catalog:  cat,
	}, nil
}

func buildProvider(cfg config.Config) (generator.Provider, error) {
	if cfg.LLM == nil || cfg.LLM.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key in config")
	}
	var p generator.Provider
	switch cfg.LLM.Provider {
	case "openai":
		client := httpclient.New(httpclient.Options{PreferIPv4: cfg.PreferIPv4, Timeout: cfg.HTTPTimeout()})
		oai, err := generator.NewOpenAIProviderFromConfig(&generator.LLMSettings{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
		}, client)
		if err != nil {
			return nil, err
		}
		p = oai
	case "mock":
		p = &generator.MockProvider{}
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
	return generator.NewRateLimited(p, cfg.RateLimit.RPS, cfg.RateLimit.Burst), nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
