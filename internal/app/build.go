// Package app wires configuration, the knowledge store, the model provider
// and the HTTP API into a runnable service.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/coursekit/tutorstream/internal/config"
	"github.com/coursekit/tutorstream/internal/httpapi"
	"github.com/coursekit/tutorstream/internal/knowledge"
	"github.com/coursekit/tutorstream/internal/observability"
	"github.com/coursekit/tutorstream/internal/provider"
	"github.com/coursekit/tutorstream/internal/tutor"
)

type BuildResult struct {
	Config       *config.Config
	API          *httpapi.Server
	Orchestrator *tutor.Orchestrator
	Store        knowledge.Store
	Metrics      *observability.Metrics
	Stages       *observability.StageWindow
	StoreMode    string

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = log.Default()
	}

	metrics := observability.NewMetrics(cfg.Server.MetricsNamespace)
	stages := observability.NewStageWindow(256)

	store, err := knowledge.NewStore(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("knowledge store init failed: %w", err)
	}
	storeMode := "in-memory"
	if cfg.Store.DatabaseURL != "" {
		storeMode = "postgres"
	}

	p, err := provider.New(provider.Config{
		Mode:           cfg.Provider.Mode,
		DeepSeekAPIKey: cfg.Provider.DeepSeekAPIKey,
		DeepSeekModel:  cfg.Provider.DeepSeekModel,
		OpenAIAPIKey:   cfg.Provider.OpenAIAPIKey,
		OpenAIBaseURL:  cfg.Provider.OpenAIBaseURL,
		OpenAIModel:    cfg.Provider.OpenAIModel,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("provider init failed: %w", err)
	}
	logger.Info("provider ready", "provider", p.Name(), "streaming", provider.CanStream(p))

	orchestrator := tutor.NewOrchestrator(p, store, metrics, stages, logger, tutor.Policy{
		ChunkWords: cfg.Stream.ChunkWords,
		ChunkDelay: cfg.Stream.ChunkDelay,
	})

	api := httpapi.New(cfg, store, orchestrator, metrics, stages, storeMode, logger)

	cleanup := func() error {
		var errs []string
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Orchestrator: orchestrator,
		Store:        store,
		Metrics:      metrics,
		Stages:       stages,
		StoreMode:    storeMode,
		Cleanup:      cleanup,
	}, nil
}
