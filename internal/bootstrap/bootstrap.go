package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/config"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/ports"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/usecase"
	memorycache "github.com/visvikbharti/rna-lab-navigator-sub001/internal/infrastructure/cache/memory"
	postgrescache "github.com/visvikbharti/rna-lab-navigator-sub001/internal/infrastructure/cache/postgres"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/infrastructure/llm/ollama"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/infrastructure/llm/openaicompat"
	natsqueue "github.com/visvikbharti/rna-lab-navigator-sub001/internal/infrastructure/queue/nats"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/infrastructure/resilience"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/infrastructure/vector/qdrant"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Metrics *metrics.PipelineMetrics
	QueryUC ports.QueryService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	pipelineMetrics := metrics.NewPipelineMetrics("api")
	executor := resilience.NewExecutor(resilience.DefaultConfig())
	executor.OnRetry(func(operation string, _ int) {
		pipelineMetrics.RecordRetry(operation)
	})

	var (
		embedder  ports.Embedder
		completer ports.Completer
	)
	switch cfg.LLMProvider {
	case "openai":
		client := openaicompat.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIGenModel, cfg.OpenAIEmbedModel, executor)
		embedder, completer = client, client
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		embedder, completer = client, client
	}

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	var (
		cache   ports.AnswerCache
		closers []func()
	)
	switch cfg.CacheBackend {
	case "memory":
		cache = memorycache.New()
	default:
		db, err := postgrescache.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pgCache := postgrescache.NewCache(db)
		if err := pgCache.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure cache schema: %w", err)
		}
		cache = pgCache
		closers = append(closers, func() { _ = db.Close() })
	}

	var publisher ports.EventPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			// Analytics events are best-effort; the query path works
			// without them.
			slog.Warn("nats_unavailable", "error", err)
		} else {
			publisher = natsPublisher
			closers = append(closers, natsPublisher.Close)
		}
	}

	opts, err := cfg.PipelineOptions()
	if err != nil {
		return nil, fmt.Errorf("pipeline options: %w", err)
	}

	queryUC := usecase.NewQueryPipeline(embedder, index, completer, cache, publisher, pipelineMetrics, opts)

	return &App{
		Config:  cfg,
		Metrics: pipelineMetrics,
		QueryUC: queryUC,
		closeFn: func() {
			for _, closeFn := range closers {
				closeFn()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
