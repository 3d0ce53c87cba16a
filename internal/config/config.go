// Package config loads runtime configuration from an optional YAML file
// (overlaid with environment variables, optionally seeded from a .env file),
// following the small-struct-per-concern layout used across the platform's
// other configuration.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	OpenAIAPIKey      string `yaml:"openai_api_key"`
	OpenAIBaseURL     string `yaml:"openai_base_url"`
	AnthropicAPIKey   string `yaml:"anthropic_api_key"`
	AnthropicBaseURL  string `yaml:"anthropic_base_url"`
	DefaultProvider   string `yaml:"default_provider"`
}

type MemoryConfig struct {
	MaxTokens              int           `yaml:"max_tokens"`
	RecentLimit            int           `yaml:"recent_limit"`
	EmbeddingModel         string        `yaml:"embedding_model"`
	EmbeddingDimension     int           `yaml:"embedding_dimension"`
	SearchThreshold        float64       `yaml:"search_threshold"`
	SearchLimit            int           `yaml:"search_limit"`
	EnableCache            bool          `yaml:"enable_cache"`
	CacheSize              int           `yaml:"cache_size"`
	DecayRate              float64       `yaml:"decay_rate"`
	ImportanceThreshold    float64       `yaml:"importance_threshold"`
	AutoConsolidation      bool          `yaml:"auto_consolidation"`
	ConsolidationInterval  time.Duration `yaml:"consolidation_interval"`
}

type RuntimeConfig struct {
	IdleTTL         time.Duration `yaml:"idle_ttl"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
	MaxIterations   int           `yaml:"max_iterations"`
	ToolConcurrency int           `yaml:"tool_concurrency"`
}

type StorageConfig struct {
	DatabaseURL     string `yaml:"database_url"`
	RedisURL        string `yaml:"redis_url"`
	QdrantURL       string `yaml:"qdrant_url"`
	QdrantCollection string `yaml:"qdrant_collection"`
	KafkaBrokers    []string `yaml:"kafka_brokers"`
	KafkaEventsTopic string `yaml:"kafka_events_topic"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Endpoint      string `yaml:"s3_endpoint"`
}

type ObservabilityConfig struct {
	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	LLM     LLMConfig
	Memory  MemoryConfig
	Runtime RuntimeConfig
	Storage StorageConfig
	Obs     ObservabilityConfig
	HTTP    HTTPConfig
}

// Load builds a Config in three layers: documented hardcoded defaults, an
// optional YAML file (CONFIG_FILE, default "config.yaml", ignored if
// missing) overlaid on top, and finally environment variables (seeded from
// an optional .env file) overlaid on that. Each layer only overrides the
// fields it actually sets.
func Load() *Config {
	cfg := &Config{
		LLM: LLMConfig{
			OpenAIBaseURL:    "https://api.openai.com/v1",
			AnthropicBaseURL: "https://api.anthropic.com",
			DefaultProvider:  "openai",
		},
		Memory: MemoryConfig{
			MaxTokens:             8000,
			RecentLimit:           1000,
			EmbeddingModel:        "text-embedding-3-small",
			EmbeddingDimension:    1536,
			SearchThreshold:       0.7,
			SearchLimit:           10,
			EnableCache:           true,
			CacheSize:             1000,
			DecayRate:             0.01,
			ImportanceThreshold:   0.3,
			AutoConsolidation:     true,
			ConsolidationInterval: time.Hour,
		},
		Runtime: RuntimeConfig{
			IdleTTL:         30 * time.Minute,
			SweepInterval:   60 * time.Second,
			LockTimeout:     60 * time.Second,
			MaxIterations:   10,
			ToolConcurrency: 4,
		},
		Storage: StorageConfig{
			QdrantCollection: "agent_memories",
			KafkaEventsTopic: "agent.events",
		},
		Obs: ObservabilityConfig{
			LogLevel: "info",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}

	loadYAMLFile(cfg, envOr("CONFIG_FILE", "config.yaml"))

	_ = godotenv.Load()

	cfg.LLM.OpenAIAPIKey = envOr("OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIBaseURL = envOr("OPENAI_BASE_URL", cfg.LLM.OpenAIBaseURL)
	cfg.LLM.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", cfg.LLM.AnthropicAPIKey)
	cfg.LLM.AnthropicBaseURL = envOr("ANTHROPIC_BASE_URL", cfg.LLM.AnthropicBaseURL)
	cfg.LLM.DefaultProvider = envOr("LLM_DEFAULT_PROVIDER", cfg.LLM.DefaultProvider)

	cfg.Memory.MaxTokens = envInt("MEMORY_MAX_TOKENS", cfg.Memory.MaxTokens)
	cfg.Memory.RecentLimit = envInt("MEMORY_LIMIT", cfg.Memory.RecentLimit)
	cfg.Memory.EmbeddingModel = envOr("EMBEDDING_MODEL", cfg.Memory.EmbeddingModel)
	cfg.Memory.EmbeddingDimension = envInt("EMBEDDING_DIMENSION", cfg.Memory.EmbeddingDimension)
	cfg.Memory.SearchThreshold = envFloat("MEMORY_SEARCH_THRESHOLD", cfg.Memory.SearchThreshold)
	cfg.Memory.SearchLimit = envInt("MEMORY_SEARCH_LIMIT", cfg.Memory.SearchLimit)
	cfg.Memory.EnableCache = envBool("MEMORY_ENABLE_CACHE", cfg.Memory.EnableCache)
	cfg.Memory.CacheSize = envInt("MEMORY_CACHE_SIZE", cfg.Memory.CacheSize)
	cfg.Memory.DecayRate = envFloat("MEMORY_DECAY_RATE", cfg.Memory.DecayRate)
	cfg.Memory.ImportanceThreshold = envFloat("MEMORY_IMPORTANCE_THRESHOLD", cfg.Memory.ImportanceThreshold)
	cfg.Memory.AutoConsolidation = envBool("MEMORY_AUTO_CONSOLIDATION", cfg.Memory.AutoConsolidation)
	if ms := envInt("MEMORY_CONSOLIDATION_INTERVAL", 0); ms > 0 {
		cfg.Memory.ConsolidationInterval = time.Duration(ms) * time.Millisecond
	} else {
		cfg.Memory.ConsolidationInterval = envDuration("MEMORY_CONSOLIDATION_INTERVAL", cfg.Memory.ConsolidationInterval)
	}

	cfg.Runtime.IdleTTL = envDuration("RUNTIME_IDLE_TTL", cfg.Runtime.IdleTTL)
	cfg.Runtime.SweepInterval = envDuration("RUNTIME_SWEEP_INTERVAL", cfg.Runtime.SweepInterval)
	cfg.Runtime.LockTimeout = envDuration("RUNTIME_LOCK_TIMEOUT", cfg.Runtime.LockTimeout)
	cfg.Runtime.MaxIterations = envInt("RUNTIME_MAX_ITERATIONS", cfg.Runtime.MaxIterations)
	cfg.Runtime.ToolConcurrency = envInt("RUNTIME_TOOL_CONCURRENCY", cfg.Runtime.ToolConcurrency)

	cfg.Storage.DatabaseURL = envOr("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Storage.RedisURL = envOr("REDIS_URL", cfg.Storage.RedisURL)
	cfg.Storage.QdrantURL = envOr("QDRANT_URL", cfg.Storage.QdrantURL)
	cfg.Storage.QdrantCollection = envOr("QDRANT_COLLECTION", cfg.Storage.QdrantCollection)
	if brokers := splitCSV(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Storage.KafkaBrokers = brokers
	}
	cfg.Storage.KafkaEventsTopic = envOr("KAFKA_EVENTS_TOPIC", cfg.Storage.KafkaEventsTopic)
	cfg.Storage.S3Bucket = envOr("S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3Endpoint = envOr("S3_ENDPOINT", cfg.Storage.S3Endpoint)

	cfg.Obs.LogPath = envOr("LOG_PATH", cfg.Obs.LogPath)
	cfg.Obs.LogLevel = envOr("LOG_LEVEL", cfg.Obs.LogLevel)
	cfg.Obs.OTLPEndpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Obs.OTLPEndpoint)

	cfg.HTTP.Addr = envOr("HTTP_ADDR", cfg.HTTP.Addr)

	return cfg
}

// loadYAMLFile overlays cfg with the contents of path, if it exists. Fields
// absent from the file are left at whatever value cfg already carries.
func loadYAMLFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("read yaml config file")
		}
		return
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("parse yaml config file")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}
