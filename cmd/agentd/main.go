// Command agentd runs the agent runtime platform's HTTP server: it wires
// the event bus, tool/skill registries, LLM providers, memory store,
// agent repository, runtime manager, knowledge ingestor, and HTTP/SSE
// transport, then serves until signaled to shut down.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/intelligencedev/agentruntime/internal/agentrepo"
	"github.com/intelligencedev/agentruntime/internal/config"
	"github.com/intelligencedev/agentruntime/internal/embedding"
	"github.com/intelligencedev/agentruntime/internal/eventbus"
	"github.com/intelligencedev/agentruntime/internal/httpapi"
	"github.com/intelligencedev/agentruntime/internal/knowledge"
	"github.com/intelligencedev/agentruntime/internal/llm"
	"github.com/intelligencedev/agentruntime/internal/llm/anthropic"
	"github.com/intelligencedev/agentruntime/internal/llm/openai"
	"github.com/intelligencedev/agentruntime/internal/memory"
	"github.com/intelligencedev/agentruntime/internal/observability"
	"github.com/intelligencedev/agentruntime/internal/runtime"
	"github.com/intelligencedev/agentruntime/internal/service"
	"github.com/intelligencedev/agentruntime/internal/skills"
	"github.com/intelligencedev/agentruntime/internal/tools"
)

func main() {
	cfg := config.Load()
	observability.InitLogger(cfg.Obs.LogPath, cfg.Obs.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, shutdownOTel, err := observability.InitOTel(ctx, cfg.Obs.OTLPEndpoint, "agentd")
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(shutdownCtx)
		}()
	}

	bus := eventbus.New(1000)

	if len(cfg.Storage.KafkaBrokers) > 0 {
		bridge := eventbus.NewKafkaBridge(cfg.Storage.KafkaBrokers, cfg.Storage.KafkaEventsTopic)
		bridge.Attach(bus)
		defer bridge.Close()
	} else {
		log.Warn().Msg("no KAFKA_BROKERS configured; event bus has no durable replay log")
	}

	embedder := buildEmbedder(cfg)

	agentRepo, err := buildAgentRepo(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize agent repository")
	}

	memBackend, err := buildMemoryBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize memory backend")
	}
	memCache := buildMemoryCache(cfg)
	vecBackend, err := buildVectorBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize vector backend")
	}
	memStore := memory.NewStore(memBackend, memCache, vecBackend, embedder, bus)

	if cfg.Memory.AutoConsolidation {
		scheduler := memory.NewScheduler(memStore, cfg.Memory.ConsolidationInterval, func() []string {
			return agentIDsForConsolidation(ctx, agentRepo)
		})
		scheduler.Start(ctx)
	}

	baseTools := tools.NewRegistry()
	tools.RegisterBuiltins(baseTools)

	baseSkills := skills.NewRegistry()
	skills.RegisterBuiltins(baseSkills)

	llmFactory := buildLLMFactory(cfg)

	runtimeCfg := runtime.Config{
		IdleTTL:         cfg.Runtime.IdleTTL,
		SweepInterval:   cfg.Runtime.SweepInterval,
		LockTimeout:     cfg.Runtime.LockTimeout,
		MaxIterations:   cfg.Runtime.MaxIterations,
		ToolConcurrency: cfg.Runtime.ToolConcurrency,
	}
	runtimeManager := runtime.NewManager(runtimeCfg, llmFactory, memStore, baseTools, baseSkills, bus)
	runtimeManager.StartSweeper(ctx)
	defer runtimeManager.StopSweeper()

	svc := service.New(agentRepo, runtimeManager)

	objectStore := buildObjectStore(ctx, cfg)
	knowledgeRepo := buildKnowledgeRepo(ctx, cfg)
	ingestor := knowledge.NewIngestor(knowledgeRepo, objectStore, embedder, memStore)
	_ = ingestor // wired for future knowledge-ingestion endpoints; exercised directly by its own tests

	server := httpapi.NewServer(svc, tracer, baseTools, baseSkills)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses must not be cut off
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("agentd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func buildEmbedder(cfg *config.Config) embedding.Provider {
	if cfg.LLM.OpenAIAPIKey == "" {
		log.Warn().Msg("no OpenAI API key configured; using deterministic local embeddings")
		return embedding.NewDeterministic(cfg.Memory.EmbeddingDimension)
	}
	return embedding.NewOpenAI(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, cfg.Memory.EmbeddingModel, cfg.Memory.EmbeddingDimension)
}

func buildAgentRepo(ctx context.Context, cfg *config.Config) (agentrepo.Repository, error) {
	if cfg.Storage.DatabaseURL == "" {
		log.Warn().Msg("no DATABASE_URL configured; using in-memory agent repository")
		return agentrepo.NewInMemory(), nil
	}
	return agentrepo.NewPostgres(ctx, cfg.Storage.DatabaseURL)
}

func buildMemoryBackend(ctx context.Context, cfg *config.Config) (memory.Backend, error) {
	if cfg.Storage.DatabaseURL == "" {
		log.Warn().Msg("no DATABASE_URL configured; using in-memory memory backend")
		return memory.NewInMemoryBackend(), nil
	}
	return memory.NewPostgresBackend(ctx, cfg.Storage.DatabaseURL)
}

func buildMemoryCache(cfg *config.Config) memory.Cache {
	if !cfg.Memory.EnableCache {
		return nil
	}
	if cfg.Storage.RedisURL == "" {
		return memory.NewLRUCache(cfg.Memory.CacheSize)
	}
	cache, err := memory.NewRedisCache(cfg.Storage.RedisURL, time.Hour)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to redis; falling back to in-process cache")
		return memory.NewLRUCache(cfg.Memory.CacheSize)
	}
	return cache
}

func buildVectorBackend(ctx context.Context, cfg *config.Config) (memory.VectorBackend, error) {
	if cfg.Storage.QdrantURL == "" {
		log.Warn().Msg("no QDRANT_URL configured; using brute-force in-memory vector search")
		return memory.NewBruteForceBackend(), nil
	}
	return memory.NewQdrantBackend(cfg.Storage.QdrantURL, cfg.Storage.QdrantCollection, cfg.Memory.EmbeddingDimension)
}

func buildLLMFactory(cfg *config.Config) *llm.Factory {
	factory := llm.NewFactory()
	if cfg.LLM.OpenAIAPIKey != "" {
		factory.Register(openai.New("openai", cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, "gpt-4o"))
	}
	if cfg.LLM.AnthropicAPIKey != "" {
		factory.Register(anthropic.New("anthropic", cfg.LLM.AnthropicAPIKey, cfg.LLM.AnthropicBaseURL, "claude-sonnet-4-5"))
	}
	factory.SetDefault(cfg.LLM.DefaultProvider)
	return factory
}

func buildObjectStore(ctx context.Context, cfg *config.Config) knowledge.ObjectStore {
	if cfg.Storage.S3Bucket == "" {
		log.Warn().Msg("no S3_BUCKET configured; knowledge uploads are discarded")
		return knowledge.NewNoopObjectStore()
	}
	store, err := knowledge.NewS3ObjectStore(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Endpoint)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize s3 object store; knowledge uploads are discarded")
		return knowledge.NewNoopObjectStore()
	}
	return store
}

func buildKnowledgeRepo(ctx context.Context, cfg *config.Config) knowledge.Repository {
	if cfg.Storage.DatabaseURL == "" {
		return knowledge.NewInMemory()
	}
	repo, err := knowledge.NewPostgres(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize postgres knowledge repository; falling back to in-memory")
		return knowledge.NewInMemory()
	}
	return repo
}

func agentIDsForConsolidation(ctx context.Context, repo agentrepo.Repository) []string {
	agents, err := repo.ListPublicAgents(ctx)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	return ids
}
