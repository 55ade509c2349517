package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/roadmap-agent/internal/architect"
	"github.com/jonathan/roadmap-agent/internal/config"
	"github.com/jonathan/roadmap-agent/internal/db"
	"github.com/jonathan/roadmap-agent/internal/editing"
	"github.com/jonathan/roadmap-agent/internal/gate"
	"github.com/jonathan/roadmap-agent/internal/interview"
	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/observability"
	"github.com/jonathan/roadmap-agent/internal/pipeline"
	"github.com/jonathan/roadmap-agent/internal/research"
	"github.com/jonathan/roadmap-agent/internal/trace"
	"github.com/jonathan/roadmap-agent/internal/validation"
	"github.com/jonathan/roadmap-agent/internal/videos"
)

// app holds everything a command needs after assembly.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   *llm.GeminiClient
	database *db.DB
	orch     *pipeline.Orchestrator
	finder   *videos.Finder
}

// buildApp wires the agents, gateway, gate, and optional database into an
// orchestrator. The database is optional: without DATABASE_URL the pipeline
// runs without persistence or traces.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.RequireGemini(); err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	gen := llm.NewGateway(client, logger)

	var (
		database *db.DB
		store    pipeline.Store
		recorder trace.Recorder
	)
	if cfg.DatabaseURL != "" {
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			client.Close()
			return nil, err
		}
		if err := database.InitSchema(ctx); err != nil {
			client.Close()
			database.Close()
			return nil, err
		}
		store = database
		recorder = database
	}

	g := gate.New(cfg.ConcurrencyLimit)

	var search videos.SearchClient
	if cfg.YouTubeAPIKey != "" {
		yt, err := videos.NewYouTubeClient(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			logger.Warn("youtube client unavailable, using fallback tier", zap.Error(err))
		} else {
			search = yt
		}
	}
	finder := videos.New(gen, search, videos.NewOEmbedVerifier(nil), videos.NewBreaker(), g, logger)

	orch := pipeline.New(
		interview.New(gen, logger),
		architect.New(gen, g, logger),
		research.New(gen, logger),
		validation.New(gen, logger),
		editing.New(gen, logger),
		finder,
		store,
		g,
		recorder,
		pipeline.Options{
			MaxFixAttempts: cfg.MaxFixAttempts,
			MaxQuestions:   cfg.MaxQuestions,
			MaxVideos:      cfg.MaxVideos,
		},
		logger,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		database: database,
		orch:     orch,
		finder:   finder,
	}, nil
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.database != nil {
		a.database.Close()
	}
	_ = a.logger.Sync()
}
