package main

import (
	"context"
	"fmt"

	"github.com/jonathan/audioscribe/internal/advisor"
	"github.com/jonathan/audioscribe/internal/config"
	"github.com/jonathan/audioscribe/internal/db"
	"github.com/jonathan/audioscribe/internal/logger"
	"github.com/jonathan/audioscribe/internal/pipeline"
	"github.com/jonathan/audioscribe/internal/polish"
	"github.com/jonathan/audioscribe/internal/stt"
)

// loadConfig builds the effective config: file values if --config was given,
// environment overlay, defaults for whatever is still unset.
func loadConfig(path string) (config.Config, error) {
	cfg := config.Config{}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	cfg.FromEnv()
	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required (env var or config file)")
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("GEMINI_API_KEY is required (env var or config file)")
	}
	return cfg, nil
}

// deps bundles everything a command needs to drive the pipeline.
type deps struct {
	cfg     config.Config
	log     *logger.Logger
	db      *db.DB
	manager *pipeline.Manager
}

func (d *deps) close() {
	if d.db != nil {
		d.db.Close()
	}
}

// buildDeps connects to PostgreSQL, applies schema migrations and constructs
// the Gemini-backed pipeline manager.
func buildDeps(ctx context.Context, cfg config.Config, onProgress pipeline.ProgressCallback) (*deps, error) {
	log := logger.New()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	transcriber, err := stt.NewGeminiTranscriber(ctx, cfg.APIKey, cfg.TranscribeModel)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create transcriber: %w", err)
	}
	refiner, err := polish.NewGeminiRefiner(ctx, cfg.APIKey, cfg.PolishModel)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create refiner: %w", err)
	}
	adv, err := advisor.NewGeminiAdvisor(ctx, cfg.APIKey, cfg.AdvisorModel, log.WithModule("advisor").Entry)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create advisor: %w", err)
	}

	chain := stt.NewChain(log, transcriber)
	manager := pipeline.NewManager(database, chain, refiner, adv, cfg,
		log.WithModule("pipeline").Entry, onProgress)

	return &deps{cfg: cfg, log: log, db: database, manager: manager}, nil
}
